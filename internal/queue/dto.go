// AngelaMos | 2026
// dto.go

package queue

type EnqueueBody struct {
	CreatorIDs []string `json:"creator_ids" validate:"required,min=1,max=1000,dive,required"`
	CampaignID string   `json:"campaign_id" validate:"omitempty,max=64"`
}

type RetryResponse struct {
	Rescheduled int64 `json:"rescheduled"`
}

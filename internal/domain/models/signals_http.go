package models

// Requests for the HTTP API. Defined in domain for consistency and reuse.

type AssessmentRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required,max=20"`
}

type ConditionInput struct {
	Type      ConditionType `json:"type" validate:"required,oneof=news_risk_tag social_negative_ratio onchain_netflow onchain_active_address price_change risk_score risk_level"`
	Operator  Operator      `json:"operator" validate:"required,oneof=> < >= <= =="`
	Threshold Threshold     `json:"threshold"`
	Tag       string        `json:"tag" validate:"required_if=Type news_risk_tag"`
}

type CreateRuleRequest struct {
	Name       string           `json:"name" validate:"required,max=120"`
	Enabled    *bool            `json:"enabled"`
	Scope      Scope            `json:"scope"`
	Conditions []ConditionInput `json:"conditions" validate:"dive"`
}

type UpdateRuleRequest struct {
	ID         string            `param:"id" json:"-" validate:"required"`
	Name       *string           `json:"name" validate:"omitempty,max=120"`
	Enabled    *bool             `json:"enabled"`
	Scope      *Scope            `json:"scope"`
	Conditions *[]ConditionInput `json:"conditions"`
}

type IDRequest struct {
	ID string `param:"id" validate:"required"`
}

type ListNotificationsRequest struct {
	Unread bool `query:"unread"`
	Limit  int  `query:"limit" default:"50" validate:"gte=1,lte=100"`
}

// ToConditions converts validated inputs to domain conditions.
func ToConditions(in []ConditionInput) []Condition {
	out := make([]Condition, 0, len(in))
	for _, c := range in {
		out = append(out, Condition{Type: c.Type, Operator: c.Operator, Threshold: c.Threshold, Tag: c.Tag})
	}
	return out
}

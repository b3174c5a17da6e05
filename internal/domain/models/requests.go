package models

// Requests for the HTTP control surface. Defined in domain for consistency and reuse.

type HistoryRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=1000"`
}

type AnalyzeRequest struct {
	Symbols []string `json:"symbols" validate:"omitempty,dive,required"`
}

type TestNotificationRequest struct {
	Message string `json:"message" default:"Test notification" validate:"max=512"`
}

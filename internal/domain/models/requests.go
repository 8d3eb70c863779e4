package models

// Requests for the ops HTTP endpoints. Defined in domain for consistency and reuse.

type AlignmentRequest struct {
	Days int `query:"days" json:"days" default:"2" validate:"gte=1,lte=30"`
}

type LatestSignalRequest struct {
	// Bypass the cache and read straight from the prediction store.
	Fresh bool `query:"fresh" json:"fresh"`
}

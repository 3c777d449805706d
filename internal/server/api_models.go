package server

import "github.com/raysh454/qssage/internal/app"

// LatLng is a client-reported position.
type LatLng struct {
	Lat float64 `json:"lat" example:"37.5547"`
	Lng float64 `json:"lng" example:"126.9707"`
}

// ReportRequest is a manual report submitted from the app.
type ReportRequest struct {
	URL      string  `json:"url" example:"http://203.0.113.7/login"`
	Note     string  `json:"note,omitempty" example:"sticker on a parking meter"`
	Location *LatLng `json:"location,omitempty"`
}

// DispatchRequest selects the reports to mail.
type DispatchRequest struct {
	IDs []string `json:"ids"`
}

type DispatchResponse struct {
	OK   bool `json:"ok"`
	Sent int  `json:"sent"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

// ScanEvent is one websocket frame of a streamed scan.
type ScanEvent struct {
	Type   string          `json:"type"` // "state" | "result" | "error"
	ScanID string          `json:"scan_id,omitempty"`
	State  app.State       `json:"state,omitempty"`
	Result *app.ScanResult `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"url is required"`
}

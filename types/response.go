package types

// ApiResponse is the shared response envelope. Vehicle-check responses carry
// the updated visit in Data; the N-1 Calling path additionally returns a
// customer tracking link.
type ApiResponse struct {
	Success      bool        `json:"success"`
	Message      string      `json:"message"`
	Status       int         `json:"status"`
	Token        string      `json:"token,omitempty"`
	TrackingLink string      `json:"tracking_link,omitempty"`
	Data         interface{} `json:"data,omitempty"`
}

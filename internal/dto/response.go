package dto

import "github.com/yukikurage/catena-api/internal/utils"

// Response is the success envelope shared by every endpoint.
type Response struct {
	Success    bool                      `json:"success"`
	Message    string                    `json:"message,omitempty"`
	Data       interface{}               `json:"data,omitempty"`
	Token      string                    `json:"token,omitempty"`
	Pagination *utils.PaginationResponse `json:"pagination,omitempty"`
}

// OK wraps data in a success envelope.
func OK(data interface{}) Response {
	return Response{Success: true, Data: data}
}

// OKWithMessage wraps data in a success envelope with a message.
func OKWithMessage(message string, data interface{}) Response {
	return Response{Success: true, Message: message, Data: data}
}

package models

type CreateConversationRequestBody struct {
	Participants []uint  `json:"participants"`
	Type         string  `json:"type"`
	Context      string  `json:"context"`
	Title        *string `json:"title"`
}

type MessageRequest struct {
	Content     string  `json:"content"`
	MessageType string  `json:"message_type"`
	Metadata    JSONMap `json:"metadata"`
}

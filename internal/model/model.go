package model

// All returns every persisted model in migration order.
func All() []any {
	return []any{
		&Room{},
		&Checkout{},
		&DetectedObject{},
		&UploadBatch{},
		&Chat{},
		&ChatMessage{},
		&AgentEvent{},
		&PushSubscription{},
	}
}

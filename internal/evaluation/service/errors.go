package service

// StateError 当前周期状态不允许该操作
type StateError struct {
	Message string
}

func (e *StateError) Error() string {
	return e.Message
}

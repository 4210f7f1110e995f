package config

// FieldError 指出配置里出错的字段，Path() 形如 Global.ListenPort、Storage.Path 或 Repo[npm].Validation。
type FieldError struct {
	Section string
	Field   string
	Reason  string
	Err     error
}

func (e *FieldError) Path() string {
	if e.Section == "" {
		return e.Field
	}
	return e.Section + "." + e.Field
}

func (e *FieldError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		if msg != "" {
			msg += ": "
		}
		msg += e.Err.Error()
	}
	return e.Path() + ": " + msg
}

func (e *FieldError) Unwrap() error { return e.Err }

func globalError(field, reason string) error {
	return &FieldError{Section: "Global", Field: field, Reason: reason}
}

func storageError(field, reason string) error {
	return &FieldError{Section: "Storage", Field: field, Reason: reason}
}

func repoError(repo, field, reason string) error {
	return &FieldError{Section: "Repo[" + repo + "]", Field: field, Reason: reason}
}

func repoWrap(repo, field string, err error) error {
	return &FieldError{Section: "Repo[" + repo + "]", Field: field, Err: err}
}

package httpx

// SafeErrMsg returns the error message, or "" for nil. Keeps handlers
// from leaking anything beyond the message string.
func SafeErrMsg(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

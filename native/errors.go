package native

import "fmt"

// CallError is an error the loaded library reported through its error-code
// and error-message hooks after a call.
type CallError struct {
	Code    int32
	Message string
}

func (e *CallError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("library error %d", e.Code)
	}
	return fmt.Sprintf("library error %d: %s", e.Code, e.Message)
}

// SymbolError reports a symbol that could not be resolved or was never
// registered with the session.
type SymbolError struct {
	Name string
	Err  error
}

func (e *SymbolError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("symbol %s: not registered", e.Name)
	}
	return fmt.Sprintf("symbol %s: %v", e.Name, e.Err)
}

func (e *SymbolError) Unwrap() error { return e.Err }

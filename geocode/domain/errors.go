package domain

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// UpstreamError é uma resposta do upstream que não pôde ser usada:
// status fora de 2xx ou corpo que não decodifica no formato esperado.
type UpstreamError struct {
	Endpoint string
	Status   int
	Body     string
	// Err é preenchido quando o corpo veio com 2xx mas não decodificou.
	Err error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s: decode response: %v", e.Endpoint, e.Err)
	}
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("upstream %s: status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("upstream %s: status %d: %s", e.Endpoint, e.Status, body)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// TransportError é uma falha para alcançar o upstream (rede, timeout, cancelamento).
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout informa se a falha foi por tempo esgotado.
func (e *TransportError) Timeout() bool {
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

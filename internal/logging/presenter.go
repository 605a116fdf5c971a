package logging

import (
	"errors"
	"fmt"

	"github.com/pterm/pterm"

	"github.com/LLIEPJIOK/tdb-client/pkg/ws"
)

// PresentError formats an error for user display with masking.
func PresentError(context string, err error) string {
	if err == nil {
		return ""
	}

	msg := fmt.Sprintf("%s: %s", context, Mask(err.Error()))

	if hint := hintFor(err); hint != "" {
		msg += "\n  " + hint
	}

	return msg
}

// PrintError writes the presented error through pterm.
func PrintError(context string, err error) {
	if err == nil {
		return
	}

	pterm.Error.Println(PresentError(context, err))
}

func hintFor(err error) string {
	var hsErr *ws.HandshakeError

	switch {
	case errors.As(err, &hsErr) && hsErr.StatusCode == 401:
		return "check the username and password of the profile"
	case errors.Is(err, ws.ErrInvalidEndpoint):
		return "the URL must look like ws://host:port or wss://host:port"
	case errors.Is(err, ws.ErrTimeout):
		return "the server did not answer in time"
	case errors.Is(err, ws.ErrNetwork):
		return "is the TDB server running and reachable?"
	case errors.Is(err, ws.ErrConnectionLost):
		return "the connection was dropped; connect again"
	case errors.Is(err, ws.ErrNotConnected):
		return "use 'list' to see open connections"
	default:
		return ""
	}
}

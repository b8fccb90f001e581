package ollama

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kirillkom/docqa/internal/infrastructure/resilience"
)

// ErrModelNotFound means Ollama does not have the configured model pulled.
var ErrModelNotFound = errors.New("ollama model not found")

// missingModel turns Ollama's 404 for an unknown model into a configuration
// error that names the setting to fix.
func missingModel(err error, model, setting string) error {
	var statusErr *resilience.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		return err
	}
	if !strings.Contains(strings.ToLower(statusErr.Body), "not found") {
		return err
	}
	return fmt.Errorf("%w: %q (run `ollama pull %s` or set %s): %w", ErrModelNotFound, model, model, setting, err)
}

package wiki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type inferenceResponse struct {
	Output struct {
		Probabilities struct {
			True float64 `json:"true"`
		} `json:"probabilities"`
	} `json:"output"`
}

// RevertRisk asks the language-agnostic inference endpoint for the
// probability that the given revision will be reverted.
func (c *Client) RevertRisk(ctx context.Context, revisionID int64, lang string) (float64, error) {
	const op = "revertrisk"

	payload, err := json.Marshal(map[string]any{
		"rev_id": revisionID,
		"lang":   lang,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal inference payload: %w", err)
	}

	var resp inferenceResponse
	err = c.doJSON(ctx, surfaceRevertRisk, op, func() (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.inferenceURL, bytes.NewReader(payload))
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, &resp)
	if err != nil {
		return 0, err
	}

	return resp.Output.Probabilities.True, nil
}

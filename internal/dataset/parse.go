package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

const readChunk = 32 << 10

// ParseText reads a comma separated list of numbers, the text form users
// type or upload. The list is decoded as the body of a JSON array, so any
// JSON number syntax is accepted and anything else is a parse error.
func ParseText(text string) ([]float64, error) {
	var series []float64
	if err := json.Unmarshal([]byte("["+text+"]"), &series); err != nil {
		return nil, &ValidationError{Reason: ReasonParse, Cause: err}
	}
	if series == nil {
		series = []float64{}
	}

	if err := CheckLength(series); err != nil {
		return nil, err
	}
	return series, nil
}

// ReadFile reads r to the end, stopping early when ctx is done, and parses
// the content with ParseText.
func ReadFile(ctx context.Context, r io.Reader) ([]float64, error) {
	var sb strings.Builder
	buf := make([]byte, readChunk)

	for {
		if err := ctx.Err(); err != nil {
			return nil, &ValidationError{Reason: ReasonRead, Cause: err}
		}

		n, err := r.Read(buf)
		sb.Write(buf[:n])
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ValidationError{Reason: ReasonRead, Cause: err}
		}
	}

	return ParseText(strings.TrimPrefix(sb.String(), "\ufeff"))
}

package service

import (
	"context"
	"fmt"
	"time"

	"pdflux-api/internal/domain"
)

// ConvertInput describes one unit of converter work.
type ConvertInput struct {
	JobID    uint
	InputKey string
	ToFormat domain.ConversionFormat
}

// Converter turns a stored source PDF into the requested format and returns
// the output object key. Implementations are external engines; the ledger
// only sees the terminal result.
type Converter interface {
	Convert(ctx context.Context, input ConvertInput) (string, error)
}

// SimulatedConverter stands in for a real conversion engine. It waits a
// configured delay and materializes the output by copying the source object.
type SimulatedConverter struct {
	storage BlobStore
	delay   time.Duration
}

func NewSimulatedConverter(storage BlobStore, delay time.Duration) *SimulatedConverter {
	return &SimulatedConverter{storage: storage, delay: delay}
}

func (c *SimulatedConverter) Convert(ctx context.Context, input ConvertInput) (string, error) {
	if !input.ToFormat.Valid() {
		return "", fmt.Errorf("unsupported target format %q", input.ToFormat)
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(c.delay):
	}

	outputKey := c.storage.OutputKey(input.InputKey, input.ToFormat.OutputExtension())
	if err := c.storage.CopyToOutput(ctx, input.InputKey, outputKey); err != nil {
		return "", err
	}

	return outputKey, nil
}

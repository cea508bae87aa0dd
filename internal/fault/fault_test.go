package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", base, KindUnknown},
		{"not found", NotFound("get record", 404, base), KindNotFound},
		{"transient", Transient("list records", 503, base), KindTransient},
		{"storage", Storage("save", base), KindStorage},
		{"cancelled", Cancelled("list records", context.Canceled), KindCancelled},
		{"bare context cancel", context.Canceled, KindCancelled},
		{"wrapped", fmt.Errorf("fetch: %w", NotFound("get record", 404, nil)), KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(errors.New("connection reset")))
	assert.True(t, IsTransient(Transient("op", 500, nil)))
	assert.False(t, IsTransient(NotFound("op", 404, nil)))
	assert.False(t, IsTransient(context.Canceled))
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	base := errors.New("no such character")
	err := NotFound("get record 7", 404, base)

	assert.Equal(t, "get record 7: not_found (status 404): no such character", err.Error())
	assert.ErrorIs(t, err, base)
	assert.Equal(t, 404, StatusOf(err))
	assert.Equal(t, 0, StatusOf(base))
}

package tasks

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return payload, nil
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"namespaced", "kbingest.ingest_file", nil},
		{"empty", "", ErrInvalidTaskName},
		{"blank", "   ", ErrInvalidTaskName},
		{"no namespace", "ingest_file", ErrNamespaceRequired},
		{"empty domain", ".ingest_file", ErrNamespaceRequired},
		{"empty name", "kbingest.", ErrNamespaceRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegistry_RegisterAndDispatch(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("kbingest.echo", echoHandler))
	require.NoError(t, reg.Register("kbingest.another", echoHandler))

	assert.Equal(t, []string{"kbingest.another", "kbingest.echo"}, reg.Names())

	task, err := NewTask("kbingest.echo", map[string]string{"hello": "world"})
	require.NoError(t, err)

	out, err := reg.Dispatch(context.Background(), task)
	require.NoError(t, err)
	assert.JSONEq(t, `{"hello":"world"}`, string(out))
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("kbingest.echo", echoHandler))

	err := reg.Register("kbingest.echo", echoHandler)
	assert.ErrorIs(t, err, ErrDuplicateTask)
}

func TestRegistry_RejectsBadRegistrations(t *testing.T) {
	reg := NewRegistry()
	assert.ErrorIs(t, reg.Register("echo", echoHandler), ErrNamespaceRequired)
	assert.ErrorIs(t, reg.Register("kbingest.echo", nil), ErrInvalidTaskName)
	assert.Empty(t, reg.Names())
}

func TestRegistry_DispatchUnknown(t *testing.T) {
	reg := NewRegistry()
	task, err := NewTask("kbingest.missing", nil)
	require.NoError(t, err)

	_, err = reg.Dispatch(context.Background(), task)
	assert.ErrorIs(t, err, ErrUnknownTask)

	_, err = reg.Dispatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNewTask_WireSafeEnvelope(t *testing.T) {
	task, err := NewTask(IngestFileTaskName, IngestFileInput{DatabaseName: "docs", SourcePath: "a.md"})
	require.NoError(t, err)

	_, err = uuid.Parse(task.ID)
	assert.NoError(t, err)

	_, err = time.Parse(time.RFC3339, task.EnqueuedAt)
	assert.NoError(t, err)

	encoded, err := json.Marshal(task)
	require.NoError(t, err)

	var decoded Task
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, task.ID, decoded.ID)
	assert.JSONEq(t, string(task.Payload), string(decoded.Payload))
}

func TestNewTask_RejectsUnencodableInput(t *testing.T) {
	_, err := NewTask("kbingest.echo", make(chan int))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

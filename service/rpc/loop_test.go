package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mdbridge/mdbridge/service/engine"
	"github.com/mdbridge/mdbridge/service/engine/enginetest"
	"github.com/mdbridge/mdbridge/service/registry"
)

func runLoop(t *testing.T, input string) (lines []string, reg *registry.Service) {
	t.Helper()
	fake := &enginetest.Engine{StepDelay: time.Millisecond}
	reg = registry.New(engine.NewEngines(fake))
	dispatcher := NewDispatcher(reg)
	var out bytes.Buffer

	loop := NewLoop(strings.NewReader(input), &out, dispatcher, reg)
	assert.NoError(t, loop.Run(context.Background()))
	reg.Wait()

	raw := strings.TrimSpace(out.String())
	if raw == "" {
		return nil, reg
	}
	return strings.Split(raw, "\n"), reg
}

func TestLoopRecoversFromMalformedLine(t *testing.T) {
	lines, _ := runLoop(t, "{not json\n{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"ping\"}\n")
	assert.Len(t, lines, 2)

	var first response
	assert.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.NotNil(t, first.Error)
	assert.Equal(t, CodeParseError, first.Error.Code)
	assert.Nil(t, first.ID)

	var second map[string]interface{}
	assert.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, float64(1), second["id"])
	assert.Equal(t, "pong", second["result"].(map[string]interface{})["status"])
}

func TestLoopSkipsBlankLines(t *testing.T) {
	lines, _ := runLoop(t, "\n   \n{\"jsonrpc\":\"2.0\",\"id\":7,\"method\":\"ping\"}\n\n")
	assert.Len(t, lines, 1)
}

func TestLoopEchoesRequestID(t *testing.T) {
	lines, _ := runLoop(t, `{"jsonrpc":"2.0","id":"abc","method":"ping"}`+"\n"+
		`{"jsonrpc":"2.0","method":"ping"}`+"\n")
	assert.Len(t, lines, 2)

	var withID map[string]interface{}
	assert.NoError(t, json.Unmarshal([]byte(lines[0]), &withID))
	assert.Equal(t, "abc", withID["id"])

	// absent id stays absent
	var withoutID map[string]interface{}
	assert.NoError(t, json.Unmarshal([]byte(lines[1]), &withoutID))
	_, present := withoutID["id"]
	assert.False(t, present)
}

func writeLoopStructure(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "valid.pdb")
	assert.NoError(t, os.WriteFile(path, []byte("ATOM      1  N   ALA A   1\n"), 0o644))
	return path
}

func TestLoopShutsDownRegistryOnEOF(t *testing.T) {
	structure := writeLoopStructure(t)
	input := `{"jsonrpc":"2.0","id":1,"method":"start_server","params":{"structure_path":` + mustJSON(structure) + `}}` + "\n"
	lines, reg := runLoop(t, input)
	assert.Len(t, lines, 1)

	// EOF triggered shutdown_all: nothing survives, starts are refused
	assert.Empty(t, reg.List(context.Background()))
	_, err := reg.Status(context.Background(), registry.DefaultBasePort)
	assert.Error(t, err)
}

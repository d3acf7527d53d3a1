package logging

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
)

func TestAudit(t *testing.T) {
	data := &sinkData{}
	logger := logr.New(&capturingSink{data: data})

	Audit(logger, "delete-oauth-client", "default", "hydra", map[string]string{
		"client_id": "dashboard-1",
	})

	assert.Equal(t, "admin action", data.msg)

	kvMap := make(map[string]interface{})
	for i := 0; i+1 < len(data.keysAndValues); i += 2 {
		if k, ok := data.keysAndValues[i].(string); ok {
			kvMap[k] = data.keysAndValues[i+1]
		}
	}

	assert.Equal(t, "true", kvMap["audit"])
	assert.Equal(t, "delete-oauth-client", kvMap["action"])
	assert.Equal(t, "default", kvMap["namespace"])
	assert.Equal(t, "hydra", kvMap["service"])
	assert.Equal(t, "dashboard-1", kvMap["client_id"])
}

type sinkData struct {
	msg           string
	keysAndValues []interface{}
}

// capturingSink implements logr.LogSink
type capturingSink struct {
	data     *sinkData
	localKVs []interface{}
}

func (s *capturingSink) Init(info logr.RuntimeInfo) {}
func (s *capturingSink) Enabled(level int) bool     { return true }
func (s *capturingSink) Info(level int, msg string, keysAndValues ...interface{}) {
	s.data.msg = msg
	allKVs := append([]interface{}{}, s.localKVs...)
	allKVs = append(allKVs, keysAndValues...)
	s.data.keysAndValues = allKVs
}
func (s *capturingSink) Error(err error, msg string, keysAndValues ...interface{}) {
	s.data.msg = msg
	allKVs := append([]interface{}{}, s.localKVs...)
	allKVs = append(allKVs, keysAndValues...)
	s.data.keysAndValues = allKVs
}
func (s *capturingSink) WithValues(keysAndValues ...interface{}) logr.LogSink {
	return &capturingSink{
		data:     s.data,
		localKVs: append(s.localKVs, keysAndValues...),
	}
}
func (s *capturingSink) WithName(name string) logr.LogSink {
	return s
}

package loader

import (
	"errors"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

type stubFeature struct {
	name    string
	enabled bool
	err     error
	loaded  bool
}

func (s *stubFeature) Name() string    { return s.name }
func (s *stubFeature) IsEnabled() bool { return s.enabled }
func (s *stubFeature) Load(fiber.Router) error {
	s.loaded = true
	return s.err
}

func TestManager_LoadAll(t *testing.T) {
	on := &stubFeature{name: "sync", enabled: true}
	off := &stubFeature{name: "integrity"}

	m := NewManager(nil)
	m.Register(on)
	m.Register(off)
	assert.Len(t, m.Features(), 2)

	assert.NoError(t, m.LoadAll(fiber.New()))
	assert.True(t, on.loaded)
	assert.False(t, off.loaded)
}

func TestManager_LoadAllFailure(t *testing.T) {
	bad := &stubFeature{name: "sync", enabled: true, err: errors.New("boom")}
	after := &stubFeature{name: "integrity", enabled: true}

	m := NewManager(nil)
	m.Register(bad)
	m.Register(after)

	err := m.LoadAll(fiber.New())
	assert.ErrorContains(t, err, "load feature sync: boom")
	assert.False(t, after.loaded)
}

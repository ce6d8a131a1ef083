package upcast_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infracore/eventcore/pkg/upcast"
)

func addField(key, value string) func(json.RawMessage) (json.RawMessage, error) {
	return func(in json.RawMessage) (json.RawMessage, error) {
		var m map[string]any
		if err := json.Unmarshal(in, &m); err != nil {
			return nil, err
		}
		m[key] = value
		return json.Marshal(m)
	}
}

func TestApplyReturnsPayloadUnchangedAtTargetVersion(t *testing.T) {
	chain := upcast.NewChain("ResourceRegistered")
	payload := json.RawMessage(`{"hostname":"web-01"}`)

	out, err := chain.Apply(payload, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestApplyChainsMultipleSteps(t *testing.T) {
	chain := upcast.NewChain("ResourceRegistered").
		Add(upcast.Step{From: 1, Fn: addField("resource_type", "physical_server")}).
		Add(upcast.Step{From: 2, Fn: addField("region", "unknown")})

	out, err := chain.Apply(json.RawMessage(`{"hostname":"web-01"}`), 1, 3)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, "physical_server", m["resource_type"])
	assert.Equal(t, "unknown", m["region"])
}

func TestApplyReturnsErrorWhenStepMissing(t *testing.T) {
	chain := upcast.NewChain("ResourceRegistered")
	_, err := chain.Apply(json.RawMessage(`{}`), 1, 2)

	var unsupported *upcast.ErrUnsupportedVersion
	assert.ErrorAs(t, err, &unsupported)
}

func TestApplyRejectsVersionNewerThanTarget(t *testing.T) {
	chain := upcast.NewChain("ResourceRegistered")
	_, err := chain.Apply(json.RawMessage(`{}`), 3, 1)
	assert.Error(t, err)
}

func TestAddPanicsOnDuplicateFromVersion(t *testing.T) {
	chain := upcast.NewChain("ResourceRegistered").Add(upcast.Step{From: 1, Fn: addField("a", "b")})
	assert.Panics(t, func() {
		chain.Add(upcast.Step{From: 1, Fn: addField("c", "d")})
	})
}

func TestRegistryUpcastsRegisteredEventType(t *testing.T) {
	registry := upcast.NewRegistry()
	registry.Register(upcast.NewChain("ResourceRegistered").Add(upcast.Step{From: 1, Fn: addField("resource_type", "physical_server")}))

	out, err := registry.Upcast("ResourceRegistered", json.RawMessage(`{"hostname":"web-01"}`), 1, 2)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, "physical_server", m["resource_type"])
}

func TestRegistryPassesThroughUnregisteredEventTypeAtSameVersion(t *testing.T) {
	registry := upcast.NewRegistry()
	payload := json.RawMessage(`{"hostname":"web-01"}`)

	out, err := registry.Upcast("OwnerAssigned", payload, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestRegistryErrorsOnUnregisteredEventTypeWithVersionMismatch(t *testing.T) {
	registry := upcast.NewRegistry()
	_, err := registry.Upcast("OwnerAssigned", json.RawMessage(`{}`), 1, 2)
	assert.Error(t, err)
}

package subject_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/infracore/eventcore/pkg/subject"
)

func TestBuilderBuild(t *testing.T) {
	got := subject.NewBuilder(subject.KindCompute).Operation(subject.OpRegistered).Build()
	assert.Equal(t, "infrastructure.compute.registered", got)
}

func TestBuilderBuildCanonicalizesCase(t *testing.T) {
	got := subject.NewBuilder(subject.AggregateKind("Network")).Operation(subject.Operation("Established")).Build()
	assert.Equal(t, "infrastructure.network.established", got)
}

func TestBuilderBuildPanicsWithoutOperation(t *testing.T) {
	assert.Panics(t, func() {
		subject.NewBuilder(subject.KindCompute).Build()
	})
}

func TestBuilderBuildWildcardTail(t *testing.T) {
	got := subject.NewBuilder(subject.KindPolicy).BuildWildcardTail()
	assert.Equal(t, "infrastructure.policy.>", got)
}

func TestForEvent(t *testing.T) {
	got := subject.ForEvent(subject.KindConnection, subject.OpSevered)
	assert.Equal(t, "infrastructure.connection.severed", got)
}

func TestMatches(t *testing.T) {
	cases := []struct {
		name    string
		pattern string
		subj    string
		want    bool
	}{
		{"exact match", "infrastructure.compute.registered", "infrastructure.compute.registered", true},
		{"exact mismatch", "infrastructure.compute.registered", "infrastructure.compute.updated", false},
		{"single wildcard matches one segment", "infrastructure.*.registered", "infrastructure.compute.registered", true},
		{"single wildcard does not cross segments", "infrastructure.*.registered", "infrastructure.compute.sub.registered", false},
		{"trailing wildcard matches one trailing segment", "infrastructure.compute.>", "infrastructure.compute.registered", true},
		{"trailing wildcard matches many trailing segments", "infrastructure.compute.>", "infrastructure.compute.policy.added", true},
		{"trailing wildcard requires at least one trailing segment", "infrastructure.compute.>", "infrastructure.compute", false},
		{"trailing wildcard on a single-segment pattern needs a body", ">", "infrastructure", true},
		{"bare trailing wildcard never matches an empty subject", ">", "", false},
		{"shorter subject than pattern does not match", "infrastructure.compute.registered.extra", "infrastructure.compute.registered", false},
		{"longer subject than pattern does not match", "infrastructure.compute", "infrastructure.compute.registered", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, subject.Matches(c.pattern, c.subj))
		})
	}
}

// internal/profile/profile_test.go
package profile

import (
	"os"
	"path/filepath"
	"testing"

	engine "github.com/jason-s-yu/negotiator/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoIssues = `
name: buyer
domain: laptop
issues:
  - name: Brand
    weight: 3
    values:
      - {value: Dell, evaluation: 10}
      - {value: Lenovo, evaluation: 5}
  - name: Disk
    weight: 1
    values:
      - {value: 256GB, evaluation: 2}
      - {value: 1TB, evaluation: 8}
`

func TestParseBuildsUtilitySpace(t *testing.T) {
	p, err := Parse([]byte(twoIssues))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Issues[0].Number, "numbers default to position")
	assert.Equal(t, 2, p.Issues[1].Number)

	space, err := p.UtilitySpace()
	require.NoError(t, err)
	assert.Equal(t, "laptop", space.Domain().Name)
	assert.Equal(t, uint64(4), space.Domain().Size())

	bid, err := engine.NewBid(space.Domain(), map[int]engine.Value{1: "Lenovo", 2: "1TB"})
	require.NoError(t, err)
	u, err := space.Utility(bid)
	require.NoError(t, err)
	// 0.75*0.5 + 0.25*1.0
	assert.InDelta(t, 0.625, u, 1e-9)
}

func TestParseRejectsBadProfiles(t *testing.T) {
	_, err := Parse([]byte("name: empty\nissues: []\n"))
	assert.ErrorIs(t, err, ErrNoIssues)

	_, err = Parse([]byte("name: x\nbogus: 1\nissues:\n  - name: A\n    weight: 1\n"))
	assert.Error(t, err, "unknown keys are rejected")

	p, err := Parse([]byte(`
name: dup
issues:
  - name: A
    weight: 1
    values:
      - {value: x, evaluation: 1}
      - {value: x, evaluation: 2}
`))
	require.NoError(t, err)
	_, err = p.UtilitySpace()
	assert.ErrorIs(t, err, engine.ErrDuplicateValue)

	p, err = Parse([]byte(`
name: weightless
issues:
  - name: A
    weight: 0
    values:
      - {value: x, evaluation: 1}
`))
	require.NoError(t, err)
	_, err = p.UtilitySpace()
	assert.ErrorIs(t, err, engine.ErrBadWeight)
}

func TestLoadShippedProfiles(t *testing.T) {
	a, err := LoadSpace(filepath.Join("..", "..", "profiles", "party_a.yaml"))
	require.NoError(t, err)
	b, err := LoadSpace(filepath.Join("..", "..", "profiles", "party_b.yaml"))
	require.NoError(t, err)
	assert.True(t, a.Domain().SameIssues(b.Domain()), "both sides negotiate the same domain")

	maxBid, err := a.MaxUtilityBid()
	require.NoError(t, err)
	u, err := a.Utility(maxBid)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, u, 1e-9)

	minBid, err := a.MinUtilityBid()
	require.NoError(t, err)
	u, err = a.Utility(minBid)
	require.NoError(t, err)
	assert.InDelta(t, 0.175, u, 1e-9)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

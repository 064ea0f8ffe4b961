package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()
	assert.Equal(t, DataModel, info.DataModel)
	assert.NotEmpty(t, info.CommitHash)
	assert.NotEmpty(t, info.BuildTime)
	assert.Contains(t, info.String(), "stam "+info.Version)
}

func TestShort(t *testing.T) {
	assert.Equal(t, "0123456", Info{CommitHash: "0123456789abcdef"}.Short())
	assert.Equal(t, "abc", Info{CommitHash: "abc"}.Short())
}

func TestStringMarksModified(t *testing.T) {
	i := Info{Version: "v1.2.0", CommitHash: "0123456789", BuildTime: "now", DataModel: DataModel, Modified: true}
	assert.Equal(t, "stam v1.2.0 (commit 0123456+dirty, built now, data model 1.0)", i.String())
}

package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo_String(t *testing.T) {
	assert.Equal(t, "dev", Info{}.String())
	assert.Equal(t, "1.4.2", Info{Major: "1", Minor: "4", Patch: "2"}.String())
}

func TestGet(t *testing.T) {
	info := Get()
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)

	kv := info.KeysAndValues()
	assert.Len(t, kv, 10)
	assert.Equal(t, "version", kv[0])
}

package mount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetSourceRecognizesTag(t *testing.T) {
	e := NewEntry()
	require.NoError(t, e.SetSource("LABEL=root"))
	name, value, ok := e.Tag()
	require.True(t, ok)
	assert.Equal(t, "LABEL", name)
	assert.Equal(t, "root", value)
	_, hasSource := e.Source()
	assert.False(t, hasSource)
}

func TestSetSourceRejectsUnknownTag(t *testing.T) {
	e := NewEntry()
	err := e.SetSource("BOGUS=root")
	assert.True(t, Is(err, ParseError))
}

func TestSetSourceNoneClearsEverything(t *testing.T) {
	e := NewEntry()
	require.NoError(t, e.SetSource("LABEL=root"))
	require.NoError(t, e.SetSource("none"))
	_, hasSource := e.Source()
	assert.False(t, hasSource)
	_, _, hasTag := e.Tag()
	assert.False(t, hasTag)
}

func TestSetSourcePlainPath(t *testing.T) {
	e := NewEntry()
	require.NoError(t, e.SetSource("/dev/sda1"))
	src, ok := e.Source()
	require.True(t, ok)
	assert.Equal(t, "/dev/sda1", src)
}

func TestSetFSTypeRecomputesFlags(t *testing.T) {
	e := NewEntry()
	e.SetFSType("proc")
	assert.Equal(t, FlagPseudo, e.Flags&FlagPseudo)

	e.SetFSType("nfs")
	assert.Equal(t, Flag(0), e.Flags&FlagPseudo)
	assert.Equal(t, FlagNetwork, e.Flags&FlagNetwork)

	e.SetFSType("none")
	_, ok := e.FSType()
	assert.False(t, ok)
	assert.Equal(t, Flag(0), e.Flags)
}

func TestGetOptionSearchesFSThenVFSThenUser(t *testing.T) {
	e := NewEntry()
	e.SetVFSOptions("rw,data=vfsvalue")
	e.SetFSOptions("data=fsvalue")
	e.SetUserOptions("data=uservalue")

	value, hasValue, ok := e.GetOption("data")
	require.True(t, ok)
	assert.True(t, hasValue)
	assert.Equal(t, "fsvalue", value)
}

func TestStreqTargetIgnoresTrailingSlash(t *testing.T) {
	e := NewEntry()
	e.Target = "/mnt/foo/"
	assert.True(t, e.StreqTarget("/mnt/foo"))
}

func TestStreqSourceExactForPseudo(t *testing.T) {
	e := NewEntry()
	e.SetFSType("proc")
	require.NoError(t, e.SetSource("proc"))
	assert.True(t, e.StreqSource("proc"))
	assert.False(t, e.StreqSource("proc/"))
}

func TestMatchTargetWithoutCacheOnlyRawPass(t *testing.T) {
	e := NewEntry()
	e.Target = "/mnt/foo"
	assert.True(t, e.MatchTarget("/mnt/foo", nil))
	assert.False(t, e.MatchTarget("/mnt/./foo/", nil))
}

func TestMatchFSTypeHandlesNegation(t *testing.T) {
	e := NewEntry()
	e.SetFSType("ext4")
	assert.True(t, e.MatchFSType("ext4,noext3"))
	assert.False(t, e.MatchFSType("noext4"))
	assert.True(t, e.MatchFSType("noext3"))
}

func TestStrdupOptionsMergesAndAppendsUser(t *testing.T) {
	e := NewEntry()
	e.SetVFSOptions("rw,noexec")
	e.SetFSOptions("ro,journal=update")
	e.SetUserOptions("user")

	out, err := e.StrdupOptions()
	require.NoError(t, err)
	assert.Equal(t, "ro,noexec,journal=update,user", out)
}

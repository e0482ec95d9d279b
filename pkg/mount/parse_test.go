package mount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuessFormatClassifiesKernelInfo(t *testing.T) {
	assert.Equal(t, FormatKernelInfo, guessFormat("21 28 0:19 / /sys rw,nosuid - sysfs sysfs rw"))
}

func TestGuessFormatClassifiesClassic(t *testing.T) {
	assert.Equal(t, FormatClassic, guessFormat("/dev/sda1 / ext4 rw,relatime 0 1"))
}

func TestParseClassicLineSixFields(t *testing.T) {
	e, err := parseClassicLine("/dev/sda1 / ext4 rw,relatime 0 1")
	require.NoError(t, err)
	src, ok := e.Source()
	require.True(t, ok)
	assert.Equal(t, "/dev/sda1", src)
	assert.Equal(t, "/", e.Target)
	fsType, ok := e.FSType()
	require.True(t, ok)
	assert.Equal(t, "ext4", fsType)
	assert.Equal(t, 0, e.Freq)
	assert.Equal(t, 1, e.PassNo)
}

func TestParseClassicLineFiveFieldsLeavesPassNoZero(t *testing.T) {
	e, err := parseClassicLine("tmpfs /tmp tmpfs rw,nosuid 0")
	require.NoError(t, err)
	assert.Equal(t, 0, e.PassNo)
}

func TestParseClassicLineWithOctalEscape(t *testing.T) {
	e, err := parseClassicLine(`/dev/sda1 /mnt/my\040disk ext4 rw 0 0`)
	require.NoError(t, err)
	assert.Equal(t, "/mnt/my disk", e.Target)
}

func TestParseClassicLineRejectsNonNumericFreq(t *testing.T) {
	_, err := parseClassicLine("/dev/sda1 / ext4 rw bogus 0")
	assert.True(t, Is(err, ParseError))
}

func TestParseClassicLineRejectsTooFewFields(t *testing.T) {
	_, err := parseClassicLine("/dev/sda1 / ext4")
	assert.True(t, Is(err, ParseError))
}

func TestParseClassicLineIgnoresTrailingFields(t *testing.T) {
	e, err := parseClassicLine("/dev/sda1 / ext4 rw,relatime 0 1 extra junk")
	require.NoError(t, err)
	assert.Equal(t, 0, e.Freq)
	assert.Equal(t, 1, e.PassNo)
}

func TestParseKernelInfoLine(t *testing.T) {
	line := "21 28 0:19 / /sys rw,nosuid,nodev,noexec,relatime shared:7 - sysfs sysfs rw"
	e, err := parseKernelInfoLine(line)
	require.NoError(t, err)
	assert.Equal(t, 21, e.ID)
	assert.Equal(t, 28, e.ParentID)
	major, minor, ok := e.DeviceNumber()
	require.True(t, ok)
	assert.Equal(t, 0, major)
	assert.Equal(t, 19, minor)
	assert.Equal(t, "/", e.Root)
	assert.Equal(t, "/sys", e.Target)
	assert.Equal(t, "rw,nosuid,nodev,noexec,relatime", e.VFSOptions())
	fsType, ok := e.FSType()
	require.True(t, ok)
	assert.Equal(t, "sysfs", fsType)
	src, ok := e.Source()
	require.True(t, ok)
	assert.Equal(t, "sysfs", src)
	assert.Equal(t, "rw", e.FSOptions())
}

func TestParseKernelInfoLineNoneSourceClears(t *testing.T) {
	line := "22 28 0:20 / /proc rw - proc none rw"
	e, err := parseKernelInfoLine(line)
	require.NoError(t, err)
	_, ok := e.Source()
	assert.False(t, ok)
}

func TestParseKernelInfoLineMissingSeparatorIsError(t *testing.T) {
	_, err := parseKernelInfoLine("21 28 0:19 / /sys rw,nosuid shared:7 sysfs sysfs rw")
	assert.True(t, Is(err, ParseError))
}

func TestParseKernelInfoLineRejectsSelfParent(t *testing.T) {
	_, err := parseKernelInfoLine("21 21 0:19 / /sys rw - sysfs sysfs rw")
	assert.True(t, Is(err, ParseError))
}

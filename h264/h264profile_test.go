package h264

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseProfileLevelId(t *testing.T) {
	t.Run("invalid", func(t *testing.T) {
		for _, str := range []string{
			// malformed
			"", " 42e01f", "4242e01f", "e01f", "gggggg",
			// invalid level
			"42e000", "42e00f", "42e0ff",
			// invalid profile
			"42e11f", "58601f", "64e01f",
		} {
			assert.Nil(t, ParseProfileLevelId(str), str)
		}
	})

	t.Run("level", func(t *testing.T) {
		assert.Equal(t, Level31, ParseProfileLevelId("42e01f").Level)
		assert.Equal(t, Level11, ParseProfileLevelId("42e00b").Level)
		assert.Equal(t, Level1b, ParseProfileLevelId("42f00b").Level)
		assert.Equal(t, Level42, ParseProfileLevelId("42C02A").Level)
		assert.Equal(t, Level52, ParseProfileLevelId("640c34").Level)
	})

	t.Run("profile", func(t *testing.T) {
		cases := map[string]Profile{
			"42e01f": ProfileConstrainedBaseline,
			"42C02A": ProfileConstrainedBaseline,
			"4de01f": ProfileConstrainedBaseline,
			"58f01f": ProfileConstrainedBaseline,
			"42a01f": ProfileBaseline,
			"58A01F": ProfileBaseline,
			"4D401f": ProfileMain,
			"64001f": ProfileHigh,
			"640c1f": ProfileConstrainedHigh,
		}
		for str, profile := range cases {
			assert.Equal(t, profile, ParseProfileLevelId(str).Profile, str)
		}
	})
}

func TestProfileLevelIdString(t *testing.T) {
	assert.Equal(t, "42e01f", ProfileLevelId{ProfileConstrainedBaseline, Level31}.String())
	assert.Equal(t, "42000a", ProfileLevelId{ProfileBaseline, Level1}.String())
	assert.Equal(t, "4d001f", ProfileLevelId{ProfileMain, Level31}.String())
	assert.Equal(t, "640c2a", ProfileLevelId{ProfileConstrainedHigh, Level42}.String())
	assert.Equal(t, "64002a", ProfileLevelId{ProfileHigh, Level42}.String())

	assert.Equal(t, "42f00b", ProfileLevelId{ProfileConstrainedBaseline, Level1b}.String())
	assert.Equal(t, "42100b", ProfileLevelId{ProfileBaseline, Level1b}.String())
	assert.Equal(t, "4d100b", ProfileLevelId{ProfileMain, Level1b}.String())

	assert.Empty(t, ProfileLevelId{ProfileHigh, Level1b}.String())
	assert.Empty(t, ProfileLevelId{ProfileConstrainedHigh, Level1b}.String())
	assert.Empty(t, ProfileLevelId{255, Level31}.String())

	assert.Equal(t, "42e01f", ParseProfileLevelId("42E01F").String())
	assert.Equal(t, "4d100b", ParseProfileLevelId("4D100B").String())
	assert.Equal(t, "640c2a", ParseProfileLevelId("640C2A").String())
}

func TestParseSdpProfileLevelId(t *testing.T) {
	profileLevelId := ParseSdpProfileLevelId("")
	if assert.NotNil(t, profileLevelId) {
		assert.Equal(t, DefaultProfileLevelId, *profileLevelId)
	}

	// the default must not be shared
	profileLevelId.Level = Level5
	assert.Equal(t, Level31, DefaultProfileLevelId.Level)

	profileLevelId = ParseSdpProfileLevelId("640c2a")
	if assert.NotNil(t, profileLevelId) {
		assert.Equal(t, ProfileConstrainedHigh, profileLevelId.Profile)
		assert.Equal(t, Level42, profileLevelId.Level)
	}

	assert.Nil(t, ParseSdpProfileLevelId("foobar"))
}

func TestIsSameProfile(t *testing.T) {
	assert.True(t, IsSameProfile("", ""))
	assert.True(t, IsSameProfile("42e01f", "42C02A"))
	assert.True(t, IsSameProfile("42a01f", "58A01F"))
	assert.True(t, IsSameProfile("42e01f", ""))

	assert.False(t, IsSameProfile("", "4d001f"))
	assert.False(t, IsSameProfile("42a01f", "640c1f"))
	assert.False(t, IsSameProfile("42000a", "64002a"))
}

func TestGenerateProfileLevelIdForAnswer(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		answer, err := GenerateProfileLevelIdForAnswer(Params{}, Params{})
		assert.NoError(t, err)
		assert.Empty(t, answer)
	})

	t.Run("level symmetry capped", func(t *testing.T) {
		low := Params{ProfileLevelId: "42e015"}
		high := Params{ProfileLevelId: "42e01f"}

		answer, _ := GenerateProfileLevelIdForAnswer(low, high)
		assert.Equal(t, "42e015", answer)

		answer, _ = GenerateProfileLevelIdForAnswer(high, low)
		assert.Equal(t, "42e015", answer)
	})

	t.Run("level asymmetry", func(t *testing.T) {
		local := Params{ProfileLevelId: "42e01f", LevelAsymmetryAllowed: 1}
		remote := Params{ProfileLevelId: "42e015", LevelAsymmetryAllowed: 1}

		answer, _ := GenerateProfileLevelIdForAnswer(local, remote)
		assert.Equal(t, "42e01f", answer)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := GenerateProfileLevelIdForAnswer(Params{ProfileLevelId: "zzzzzz"}, Params{})
		assert.ErrorIs(t, err, ErrInvalidLocalProfileLevelId)

		_, err = GenerateProfileLevelIdForAnswer(Params{}, Params{ProfileLevelId: "zzzzzz"})
		assert.ErrorIs(t, err, ErrInvalidRemoteProfileLevelId)

		_, err = GenerateProfileLevelIdForAnswer(Params{ProfileLevelId: "42e01f"}, Params{ProfileLevelId: "640c1f"})
		assert.ErrorIs(t, err, ErrProfileMismatch)
	})
}

func TestByteMaskString(t *testing.T) {
	assert.Equal(t, bitsToByte("10110000"), byteMaskString('x', "x1xx0000"))
	assert.Equal(t, bitsToByte("01000010"), byteMaskString('1', "x1xx001x"))
}

func bitsToByte(str string) byte {
	v, _ := strconv.ParseUint(str, 2, 32)
	return byte(v)
}

package ctx

import (
	"github.com/synthizer-project/synthizer/internal/errors"
	"github.com/synthizer-project/synthizer/property"
)

// Property tags exposed on Source handles (spec §3: "gain, position,
// filter coefficients, pitch" are the properties clients automate).
// Filter-coefficient and generator-level properties (pitch_bend,
// looping, playback_position) are not in this schema, and the Context
// exposes no other method that sets them, since the
// property schema's fixed-slot design fits scalar/vector automation
// targets, not the filter's five-coefficient struct or a generator's
// seek-and-resume semantics. This mirrors spec §9's own choice to keep
// the schema table data-driven rather than trying to force every
// mutable field through it.
const (
	PropGain      property.Tag = "gain"
	PropAzimuth   property.Tag = "azimuth"
	PropElevation property.Tag = "elevation"
	PropPosition  property.Tag = "position"
)

// PropListenerPosition is the single property exposed on the Context
// itself: the listener's position in world space, consumed by every
// Source3D each tick to derive azimuth/elevation/distance.
const PropListenerPosition property.Tag = "position"

func validateNonNegativeGain(v property.Value) error {
	if v.Double < 0 {
		return errors.Newf("gain must be >= 0, got %v", v.Double).
			Component("ctx").
			Category(errors.CategoryProperty).
			Context("tag", string(PropGain)).
			Build()
	}
	return nil
}

var sourceSchema = property.NewSchema(
	property.Descriptor{
		Tag:      PropGain,
		Kind:     property.KindDouble,
		Default:  property.Value{Kind: property.KindDouble, Double: 1},
		Validate: validateNonNegativeGain,
	},
	property.Descriptor{
		Tag:     PropAzimuth,
		Kind:    property.KindDouble,
		Default: property.Value{Kind: property.KindDouble},
	},
	property.Descriptor{
		Tag:     PropElevation,
		Kind:    property.KindDouble,
		Default: property.Value{Kind: property.KindDouble},
	},
	property.Descriptor{
		Tag:     PropPosition,
		Kind:    property.KindDouble3,
		Default: property.Value{Kind: property.KindDouble3},
	},
)

var listenerSchema = property.NewSchema(
	property.Descriptor{
		Tag:     PropListenerPosition,
		Kind:    property.KindDouble3,
		Default: property.Value{Kind: property.KindDouble3},
	},
)

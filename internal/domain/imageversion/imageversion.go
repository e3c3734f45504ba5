// Package imageversion implements the ImageVersion value type from the
// data model: identity, equality, ordering, and tag parsing for container
// image references such as "overseer-1.0.69a1+build45" or "latest".
package imageversion

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// versionLike matches a string that looks like it starts with a semver
// numeric component: N[.N[.N]] followed by anything (prerelease/build).
var versionLike = regexp.MustCompile(`^[0-9]+(\.[0-9]+){0,2}`)

// Version is the parsed form of the version part of a tag: either the
// literal "latest" or a tolerant semver-like triple plus a remainder
// string carrying prerelease/build data that is compared lexically.
//
// The source tags mix styles like "1.1-93b" and "1.3.0.119b"; rather than
// reject one family we pin a single tolerant rule (see DESIGN.md, open
// question iii): parse as many leading N.N.N components as present,
// treat everything after as an opaque remainder compared lexically.
type Version struct {
	Raw      string
	Latest   bool
	Major    int
	Minor    int
	Patch    int
	Remainder string
}

// ParseVersion parses a version string (not "latest"; use Latest() for that).
func ParseVersion(s string) (Version, error) {
	if s == "" {
		return Version{}, fmt.Errorf("empty version")
	}
	if s == "latest" {
		return Version{Raw: s, Latest: true}, nil
	}
	loc := versionLike.FindStringIndex(s)
	if loc == nil {
		return Version{}, fmt.Errorf("unparseable version %q", s)
	}
	numeric := s[loc[0]:loc[1]]
	remainder := s[loc[1]:]
	parts := strings.Split(numeric, ".")
	v := Version{Raw: s, Remainder: remainder}
	fields := []*int{&v.Major, &v.Minor, &v.Patch}
	for i, p := range parts {
		if i >= len(fields) {
			break
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, fmt.Errorf("unparseable version component %q in %q", p, s)
		}
		*fields[i] = n
	}
	return v, nil
}

// LatestVersion returns the sentinel "latest" version.
func LatestVersion() Version { return Version{Raw: "latest", Latest: true} }

// Compare defines order between two Version values of the same identity.
// latest is strictly greater than every non-latest version; two latest
// values are not ordered (Compare returns 0, callers must not rely on
// strict ordering between two latest values beyond equality).
func (v Version) Compare(o Version) int {
	if v.Latest && o.Latest {
		return 0
	}
	if v.Latest {
		return 1
	}
	if o.Latest {
		return -1
	}
	if v.Major != o.Major {
		return cmpInt(v.Major, o.Major)
	}
	if v.Minor != o.Minor {
		return cmpInt(v.Minor, o.Minor)
	}
	if v.Patch != o.Patch {
		return cmpInt(v.Patch, o.Patch)
	}
	return strings.Compare(v.Remainder, o.Remainder)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Equal reports pure version equality (ignores digest; see ImageVersion.Equal
// for the full identity+digest rule).
func (v Version) Equal(o Version) bool {
	if v.Latest || o.Latest {
		return v.Latest && o.Latest
	}
	return v.Compare(o) == 0
}

// ImageVersion is the value type described in the data model §3.
type ImageVersion struct {
	Repository string
	Image      string
	Tag        string
	Species    string
	Version    Version
	Digest     string
}

// Identity is the "same image" identity: (repository, image, species).
type Identity struct {
	Repository string
	Image      string
	Species    string
}

func (iv ImageVersion) Identity() Identity {
	return Identity{Repository: iv.Repository, Image: iv.Image, Species: iv.Species}
}

// Equal implements the data model's equality rule: same identity AND
// either both versions are "latest" with matching digests, or parsed
// semver is equal.
func (iv ImageVersion) Equal(o ImageVersion) bool {
	if iv.Identity() != o.Identity() {
		return false
	}
	if iv.Version.Latest && o.Version.Latest {
		return iv.Digest == o.Digest
	}
	return iv.Version.Equal(o.Version)
}

// Compare orders two ImageVersion values of the same identity. It panics
// if called on values with differing identities since ordering is only
// defined within an identity (see data model §3, "Ordering").
func (iv ImageVersion) Compare(o ImageVersion) int {
	if iv.Identity() != o.Identity() {
		panic("imageversion: Compare called across differing identities")
	}
	return iv.Version.Compare(o.Version)
}

// Parse parses a full image tag into its species/version split, following
// the grammar in data model §3: optional "<species>-" prefix, optional
// semver, or the literal "latest", or species alone.
//
// The grammar is ambiguous for a single dash ("3.6-alpine" could read as
// species "3.6" version "alpine" or species "alpine" version "3.6"); we
// resolve it by preferring whichever split makes the version-looking side
// the version, matching the worked examples in the testable properties.
func Parse(tag string) (species string, version Version, err error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "", Version{}, fmt.Errorf("empty tag")
	}
	if tag == "latest" {
		return "", LatestVersion(), nil
	}

	if idx := strings.Index(tag, "-"); idx >= 0 {
		left, right := tag[:idx], tag[idx+1:]
		if versionLike.MatchString(right) {
			v, err := ParseVersion(right)
			if err != nil {
				return "", Version{}, err
			}
			return left, v, nil
		}
		if versionLike.MatchString(left) {
			v, err := ParseVersion(left)
			if err != nil {
				return "", Version{}, err
			}
			return right, v, nil
		}
		// Neither side parses as a version: treat the whole tag as a
		// bare species (no version component).
		return tag, Version{}, nil
	}

	if versionLike.MatchString(tag) {
		v, err := ParseVersion(tag)
		if err != nil {
			return "", Version{}, err
		}
		return "", v, nil
	}
	return tag, Version{}, nil
}

// FromTag builds an ImageVersion from repository/image/tag/digest,
// parsing the tag's species and version.
func FromTag(repository, image, tag, digest string) (ImageVersion, error) {
	species, version, err := Parse(tag)
	if err != nil {
		return ImageVersion{}, err
	}
	return ImageVersion{
		Repository: repository,
		Image:      image,
		Tag:        tag,
		Species:    species,
		Version:    version,
		Digest:     digest,
	}, nil
}

// Format builds a tag string from a species/version split, always in
// "<species>-<version>" order. Parse of the result yields the same split;
// a version-first tag such as "3.6-alpine" comes back as "alpine-3.6".
func Format(species string, version Version) string {
	if version.Latest {
		return "latest"
	}
	ver := formatVersion(version)
	if species == "" {
		return ver
	}
	return species + "-" + ver
}

func formatVersion(v Version) string {
	if v.Raw != "" {
		return v.Raw
	}
	return fmt.Sprintf("%d.%d.%d%s", v.Major, v.Minor, v.Patch, v.Remainder)
}

// Serialize/Deserialize support the round-trip testable property over the
// full ImageVersion value (not just the tag).
func (iv ImageVersion) Serialize() map[string]string {
	return map[string]string{
		"repository": iv.Repository,
		"image":      iv.Image,
		"tag":        iv.Tag,
		"species":    iv.Species,
		"digest":     iv.Digest,
	}
}

func Deserialize(m map[string]string) (ImageVersion, error) {
	return FromTag(m["repository"], m["image"], m["tag"], m["digest"])
}

package seed

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yml
var builtinPresets []byte

// Preset describes the shape of one seeded data set.
type Preset struct {
	Name            string  `yaml:"-"`
	Users           int     `yaml:"users"`
	PostsPerUser    int     `yaml:"posts_per_user"`
	ShortsRatio     float64 `yaml:"shorts_ratio"`
	CommentsPerPost int     `yaml:"comments_per_post"`
	MaxCommentDepth int     `yaml:"max_comment_depth"`
	LikesPerPost    int     `yaml:"likes_per_post"`
	FollowsPerUser  int     `yaml:"follows_per_user"`
	MaxDays         int     `yaml:"max_days"`
}

type presetFile struct {
	Presets map[string]Preset `yaml:"presets"`
}

// Validate rejects presets that cannot be generated.
func (p Preset) Validate() error {
	switch {
	case p.Users < 1:
		return errors.New("users must be at least 1")
	case p.PostsPerUser < 0, p.CommentsPerPost < 0, p.LikesPerPost < 0, p.FollowsPerUser < 0:
		return errors.New("counts must not be negative")
	case p.ShortsRatio < 0 || p.ShortsRatio > 1:
		return errors.New("shorts_ratio must be within [0, 1]")
	case p.CommentsPerPost > 0 && p.MaxCommentDepth < 1:
		return errors.New("max_comment_depth must be at least 1 when comments are seeded")
	}
	return nil
}

// ParsePresets decodes a presets document.
func ParsePresets(r io.Reader) (map[string]Preset, error) {
	var doc presetFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode presets: %w", err)
	}
	out := make(map[string]Preset, len(doc.Presets))
	for name, p := range doc.Presets {
		p.Name = name
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		out[strings.ToLower(name)] = p
	}
	return out, nil
}

// LoadPresets returns the built-in presets, overlaid by the file at path
// when path is not empty.
func LoadPresets(path string) (map[string]Preset, error) {
	presets, err := ParsePresets(bytes.NewReader(builtinPresets))
	if err != nil {
		return nil, err
	}
	if path == "" {
		return presets, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	extra, err := ParsePresets(f)
	if err != nil {
		return nil, err
	}
	for name, p := range extra {
		presets[name] = p
	}
	return presets, nil
}

// PresetNames lists preset names, sorted.
func PresetNames(presets map[string]Preset) []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

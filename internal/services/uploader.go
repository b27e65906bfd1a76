// biliup backed [Publisher] implementation.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Jikexiaobai/Y2B/internal/models"
	"github.com/Jikexiaobai/Y2B/internal/shared"
	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// copyright code 2 marks the submission as a rebroadcast on the destination
// platform.
const copyrightRebroadcast = 2

// PublishError carries whatever structured payload the uploader produced.
// Unexpected is set when the tool exited zero but its output could not be
// parsed into a result.
type PublishError struct {
	Payload    string
	Unexpected bool
}

func (e *PublishError) Error() string {
	if e.Unexpected {
		return "uploader returned unexpected output: " + tail(e.Payload, 512)
	}
	return "upload failed: " + tail(e.Payload, 512)
}

// titleFilter strips everything but ASCII word characters, whitespace, CJK
// ideographs and '&'. Hangul is removed explicitly so mixed Korean titles
// collapse to their remaining characters.
var titleFilter = regexp.MustCompile(`[^0-9A-Za-z_\s\x{4e00}-\x{9fa5}&]+|[\x{3163}\x{ac00}-\x{d7af}]+`)

// resultPattern extracts the single JSON object embedded in the uploader's
// final status line.
var resultPattern = regexp.MustCompile(`(\{.*\})`)

const maxTitleRunes = 75

// SanitizeTitle normalizes a source title for the destination platform:
// disallowed characters are stripped and the result truncated to 75 runes.
func SanitizeTitle(title string) string {
	title = titleFilter.ReplaceAllString(title, "")
	runes := []rune(title)
	if len(runes) > maxTitleRunes {
		runes = runes[:maxTitleRunes]
	}
	return string(runes)
}

// manifest is the per-item publish configuration consumed by the uploader.
type manifest struct {
	Line      string                   `yaml:"line"`
	Limit     int                      `yaml:"limit"`
	Streamers map[string]streamerEntry `yaml:"streamers"`
}

type streamerEntry struct {
	Copyright    int           `yaml:"copyright"`
	Source       string        `yaml:"source"`
	Tid          int           `yaml:"tid"`
	Cover        string        `yaml:"cover"`
	Title        string        `yaml:"title"`
	DescFormatID int           `yaml:"desc_format_id"`
	Desc         string        `yaml:"desc"`
	Dolby        int           `yaml:"dolby"`
	Dynamic      string        `yaml:"dynamic"`
	Subtitle     subtitleEntry `yaml:"subtitle"`
	Tag          []string      `yaml:"tag"`
	OpenSubtitle bool          `yaml:"open_subtitle"`
}

type subtitleEntry struct {
	Open int    `yaml:"open"`
	Lan  string `yaml:"lan"`
}

// UploaderOption configures an [Uploader].
type UploaderOption func(*Uploader)

// WithUploaderExecutor injects a custom executor (primarily for tests).
func WithUploaderExecutor(exec Executor) UploaderOption {
	return func(u *Uploader) {
		if exec != nil {
			u.exec = exec
		}
	}
}

// Uploader implements [Publisher] by shelling out to biliup.
type Uploader struct {
	cfg       shared.UploaderConfig
	workspace string
	exec      Executor
	logger    *log.Logger
}

// NewUploader constructs an Uploader from configuration.
func NewUploader(cfg *shared.Config, logger *log.Logger, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		cfg:       cfg.Uploader,
		workspace: cfg.Pipeline.Workspace,
		exec:      commandExecutor{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// buildManifest assembles the uploader configuration for one item.
func (u *Uploader) buildManifest(media *Media, coverPath string, item models.SourceItem, src models.SourceConfig) manifest {
	return manifest{
		Line:  u.cfg.Line,
		Limit: u.cfg.Limit,
		Streamers: map[string]streamerEntry{
			media.Path: {
				Copyright:    copyrightRebroadcast,
				Source:       item.Origin,
				Tid:          src.Tid,
				Cover:        coverPath,
				Title:        u.cfg.TitleMarker + SanitizeTitle(item.Title),
				DescFormatID: 0,
				Desc:         fmt.Sprintf(u.cfg.DescriptionTemplate, item.Origin),
				Dolby:        0,
				Dynamic:      "",
				Subtitle:     subtitleEntry{Open: 0, Lan: ""},
				Tag:          src.Tags,
				OpenSubtitle: false,
			},
		},
	}
}

// Publish writes the manifest, invokes the uploader and parses its
// structured result from process output.
func (u *Uploader) Publish(ctx context.Context, media *Media, coverPath string, item models.SourceItem, src models.SourceConfig) (*models.UploadResult, error) {
	man := u.buildManifest(media, coverPath, item, src)

	data, err := yaml.Marshal(man)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}

	manifestPath := filepath.Join(u.workspace, u.cfg.ManifestFile)
	if err := os.WriteFile(manifestPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	u.logger.Debug("publish manifest written", "path", manifestPath, "vid", item.VideoID)

	output, err := u.exec.Output(ctx, u.cfg.Binary, "upload", "-c", manifestPath)
	if err != nil {
		return nil, &PublishError{Payload: strings.TrimSpace(string(output))}
	}

	result, err := parseUploadOutput(output)
	if err != nil {
		return nil, err
	}

	u.logger.Debug("upload finished", "vid", item.VideoID, "aid", result.Data.Aid, "bvid", result.Data.Bvid)
	return result, nil
}

// parseUploadOutput extracts the JSON result object from the uploader's
// second-to-last output line.
func parseUploadOutput(output []byte) (*models.UploadResult, error) {
	lines := strings.Split(strings.TrimRight(string(output), "\n"), "\n")
	if len(lines) < 2 {
		return nil, &PublishError{Payload: string(output), Unexpected: true}
	}

	match := resultPattern.FindString(lines[len(lines)-2])
	if match == "" {
		return nil, &PublishError{Payload: string(output), Unexpected: true}
	}

	var result models.UploadResult
	if err := json.Unmarshal([]byte(match), &result); err != nil {
		return nil, &PublishError{Payload: string(output), Unexpected: true}
	}
	return &result, nil
}

// Renew refreshes the uploader's on-disk session credentials. Errors are
// reported but the caller treats renewal as best-effort.
func (u *Uploader) Renew(ctx context.Context) error {
	if _, err := u.exec.Run(ctx, u.cfg.Binary, "renew"); err != nil {
		return fmt.Errorf("session renew failed: %w", err)
	}
	return nil
}

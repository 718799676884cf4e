package ops

import (
	"fmt"
	"mime"
	"strings"

	"golang.org/x/text/language"

	"jobgraph/internal/job"
	"jobgraph/internal/services"
	"jobgraph/internal/wire"
)

// ArtifactInput describes a content-bearing node to create.
type ArtifactInput struct {
	Type        job.ArtifactType
	Name        string
	Description string
	Source      string
	ContentURL  string
	Format      string
	Language    string
	Creator     string
}

// CreateArtifact creates a DigitalDocument, MediaObject or AudioObject.
// Language must be a two-letter ISO 639-1 code and Format a media type;
// anything else fails with ErrUnsupportedValue before a document is built.
func CreateArtifact(in ArtifactInput) (Operation, error) {
	if !job.ValidArtifactType(in.Type) {
		return Operation{}, services.Wrap(services.ErrUnsupportedValue, "ops", "create artifact",
			fmt.Sprintf("artifact type %q", in.Type), nil)
	}
	if strings.TrimSpace(in.Source) == "" && strings.TrimSpace(in.ContentURL) == "" {
		return Operation{}, services.Wrap(services.ErrMissingRequiredValue, "ops", "create artifact",
			"source or content url is required", nil)
	}
	lang, err := NormalizeLanguage(in.Language)
	if err != nil {
		return Operation{}, err
	}
	format, err := NormalizeFormat(in.Format)
	if err != nil {
		return Operation{}, err
	}
	source := in.Source
	if source == "" {
		source = in.ContentURL
	}
	return Create(string(in.Type), wire.Fields{
		{Name: "name", Value: wire.NonEmpty(in.Name)},
		{Name: "description", Value: wire.NonEmpty(in.Description)},
		{Name: "source", Value: wire.String(source)},
		{Name: "contentUrl", Value: wire.NonEmpty(in.ContentURL)},
		{Name: "format", Value: wire.NonEmpty(format)},
		{Name: "inLanguage", Value: wire.NonEmpty(lang)},
		{Name: "creator", Value: wire.NonEmpty(in.Creator)},
	}, "source", "contentUrl"), nil
}

// NormalizeLanguage validates an optional ISO 639-1 code and returns it in
// lowercase.
func NormalizeLanguage(code string) (string, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return "", nil
	}
	if len(code) != 2 {
		return "", unsupportedLanguage(code, nil)
	}
	base, err := language.ParseBase(code)
	if err != nil {
		return "", unsupportedLanguage(code, err)
	}
	if base.String() != code {
		return "", unsupportedLanguage(code, nil)
	}
	return code, nil
}

func unsupportedLanguage(code string, err error) error {
	return services.Wrap(services.ErrUnsupportedValue, "ops", "validate language",
		fmt.Sprintf("%q is not a two-letter language code", code), err)
}

// NormalizeFormat validates an optional media type such as "audio/midi" and
// returns it without parameters.
func NormalizeFormat(format string) (string, error) {
	format = strings.TrimSpace(format)
	if format == "" {
		return "", nil
	}
	mediaType, _, err := mime.ParseMediaType(format)
	if err != nil {
		return "", services.Wrap(services.ErrUnsupportedValue, "ops", "validate format",
			fmt.Sprintf("%q is not a media type", format), err)
	}
	major, minor, ok := strings.Cut(mediaType, "/")
	if !ok || major == "" || minor == "" {
		return "", services.Wrap(services.ErrUnsupportedValue, "ops", "validate format",
			fmt.Sprintf("%q is not of the form type/subtype", format), nil)
	}
	return mediaType, nil
}

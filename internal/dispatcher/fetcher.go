package dispatcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"jobgraph/internal/fileutil"
	"jobgraph/internal/job"
	"jobgraph/internal/services"
	"jobgraph/internal/textutil"
)

// Fetcher materializes an artifact's content as a local file.
type Fetcher interface {
	Fetch(ctx context.Context, artifact job.Artifact, dest string) (fileutil.Written, error)
}

// HTTPDoer describes the HTTP client used to download artifacts.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// URLFetcher downloads http(s) URLs and copies file:// URLs.
type URLFetcher struct {
	Client HTTPDoer
}

// Fetch writes the artifact's content to dest. The response body is closed
// on every path and dest is never left partially written.
func (f URLFetcher) Fetch(ctx context.Context, artifact job.Artifact, dest string) (fileutil.Written, error) {
	location := artifact.Location()
	u, err := url.Parse(location)
	if err != nil {
		return fileutil.Written{}, services.Wrap(services.ErrUnsupportedValue, "fetcher", "parse url", location, err)
	}
	switch u.Scheme {
	case "http", "https":
		return f.download(ctx, u.String(), dest)
	case "file":
		out, err := fileutil.CopyFileVerified(u.Path, dest)
		if err != nil {
			return fileutil.Written{}, services.Wrap(services.ErrTransient, "fetcher", "copy", u.Path, err)
		}
		return out, nil
	default:
		return fileutil.Written{}, services.Wrap(services.ErrUnsupportedValue, "fetcher", "fetch",
			fmt.Sprintf("unsupported scheme %q in %s", u.Scheme, location), nil)
	}
}

func (f URLFetcher) download(ctx context.Context, location, dest string) (fileutil.Written, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return fileutil.Written{}, fmt.Errorf("build download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fileutil.Written{}, services.Wrap(services.ErrTransient, "fetcher", "download", location, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fileutil.Written{}, services.Wrap(services.ErrTransient, "fetcher", "download",
			fmt.Sprintf("%s returned %d", location, resp.StatusCode), nil)
	}
	out, err := fileutil.WriteStream(dest, resp.Body, 0o644)
	if err != nil {
		return fileutil.Written{}, services.Wrap(services.ErrTransient, "fetcher", "write", dest, err)
	}
	return out, nil
}

// localName picks the file name a slot's input is stored under.
func localName(slot string, artifact job.Artifact) string {
	base := ""
	if u, err := url.Parse(artifact.Location()); err == nil {
		base = path.Base(u.Path)
	}
	if base == "" || base == "." || base == "/" {
		base = artifact.Name
	}
	base = textutil.FileName(base)
	name := textutil.PathSegment(slot, "input")
	if base == "" {
		return name
	}
	return name + "-" + base
}

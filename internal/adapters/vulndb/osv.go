// Package vulndb looks up known vulnerabilities for the packages a Dockerfile installs.
package vulndb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

const (
	// maxPackages bounds the lookups per clause.
	maxPackages = 3
	// maxVulnsShown bounds the advisories listed per package.
	maxVulnsShown = 5
	// maxDetailBytes bounds advisory details shown when there is no summary.
	maxDetailBytes = 160
)

// OSVClient implements ports.VulnerabilityLookup against the OSV.dev query API.
type OSVClient struct {
	baseURL string
	client  *http.Client
}

// NewOSVClient creates a client; baseURL defaults to https://api.osv.dev.
func NewOSVClient(baseURL string) *OSVClient {
	if baseURL == "" {
		baseURL = "https://api.osv.dev"
	}
	return &OSVClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

type osvPackage struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
}

type osvQuery struct {
	Package osvPackage `json:"package"`
}

type osvVuln struct {
	ID       string   `json:"id"`
	Summary  string   `json:"summary"`
	Details  string   `json:"details"`
	Aliases  []string `json:"aliases"`
	Modified string   `json:"modified"`
}

type osvResponse struct {
	Vulns []osvVuln `json:"vulns"`
}

type packageReport struct {
	name  string
	vulns []osvVuln
}

// Lookup queries each package in the ecosystem implied by baseImage and
// renders the advisories as markdown.
func (c *OSVClient) Lookup(ctx context.Context, baseImage string, packages []string) (string, error) {
	ecosystem := Ecosystem(baseImage)
	if len(packages) > maxPackages {
		packages = packages[:maxPackages]
	}
	if len(packages) == 0 {
		return fmt.Sprintf("No installed packages detected. Pin `%s` to a specific tag or digest and rebuild regularly to pick up security patches.", orUnknown(baseImage)), nil
	}

	reports := make([]packageReport, len(packages))
	g, gctx := errgroup.WithContext(ctx)
	for i, pkg := range packages {
		g.Go(func() error {
			vulns, err := c.query(gctx, pkg, ecosystem)
			if err != nil {
				return fmt.Errorf("querying %s: %w", pkg, err)
			}
			reports[i] = packageReport{name: pkg, vulns: vulns}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	log.Printf("[DEBUG] OSV lookup: %d packages in %s", len(packages), ecosystem)
	return render(baseImage, ecosystem, reports), nil
}

func (c *OSVClient) query(ctx context.Context, name, ecosystem string) ([]osvVuln, error) {
	body, err := json.Marshal(osvQuery{Package: osvPackage{Name: name, Ecosystem: ecosystem}})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling OSV: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OSV returned status %d", resp.StatusCode)
	}

	var out osvResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return out.Vulns, nil
}

// Ecosystem maps a base image to the OSV ecosystem its OS packages live in.
func Ecosystem(baseImage string) string {
	image := strings.ToLower(baseImage)
	switch {
	case strings.Contains(image, "alpine"):
		return "Alpine"
	case strings.Contains(image, "ubuntu"):
		return "Ubuntu"
	case strings.Contains(image, "rockylinux"):
		return "Rocky Linux"
	case strings.Contains(image, "almalinux"):
		return "AlmaLinux"
	default:
		// Official language images are Debian based unless tagged otherwise.
		return "Debian"
	}
}

func render(baseImage, ecosystem string, reports []packageReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Base image**: `%s` (%s packages)\n", orUnknown(baseImage), ecosystem)

	for _, r := range reports {
		fmt.Fprintf(&sb, "\n#### %s\n", r.name)
		if len(r.vulns) == 0 {
			sb.WriteString("No known vulnerabilities reported.\n")
			continue
		}
		fmt.Fprintf(&sb, "%d known advisories", len(r.vulns))
		if len(r.vulns) > maxVulnsShown {
			fmt.Fprintf(&sb, " (showing %d)", maxVulnsShown)
		}
		sb.WriteString(". Pin a patched version or upgrade the base image.\n")
		for _, v := range r.vulns[:min(len(r.vulns), maxVulnsShown)] {
			fmt.Fprintf(&sb, "- **%s**%s: %s\n", v.ID, aliasSuffix(v.Aliases), describe(v))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func describe(v osvVuln) string {
	if s := strings.TrimSpace(v.Summary); s != "" {
		return s
	}
	details := strings.Join(strings.Fields(v.Details), " ")
	if len(details) > maxDetailBytes {
		cut := maxDetailBytes
		for cut > 0 && !utf8.RuneStart(details[cut]) {
			cut--
		}
		details = details[:cut] + "..."
	}
	if details == "" {
		return "no description"
	}
	return details
}

func aliasSuffix(aliases []string) string {
	if len(aliases) == 0 {
		return ""
	}
	return " (" + strings.Join(aliases, ", ") + ")"
}

func orUnknown(image string) string {
	if image == "" {
		return "unknown"
	}
	return image
}

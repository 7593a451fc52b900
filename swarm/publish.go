package swarm

import (
	"context"
	"errors"
	"regexp"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoMetadata            = errors.New("No metadata")
	ErrMetadataInconsistency = errors.New("Metadata inconsistency")
)

var bzzrRE = regexp.MustCompile(`bzzr://(.+)`)

// Contract is the part of a compiled contract needed for publishing.
type Contract struct {
	Metadata     string
	MetadataHash string
}

// SourceReader reads the sources a metadata document names.
type SourceReader interface {
	ReadFile(ctx context.Context, path string) (string, error)
}

type item struct {
	content string
	hash    string
}

// PublishMetadata uploads the metadata of contract and then every source it
// references, in order, stopping at the first failure. Sources that cannot be
// read are skipped.
func (c *Client) PublishMetadata(ctx context.Context, contract Contract, sources SourceReader) error {
	if !gjson.Valid(contract.Metadata) {
		return errors.New("invalid metadata JSON")
	}
	metadata := gjson.Parse(contract.Metadata)
	if !metadata.IsObject() {
		return ErrNoMetadata
	}

	var names, hashes []string
	var inconsistent bool
	metadata.Get("sources").ForEach(func(name, src gjson.Result) bool {
		m := bzzrRE.FindStringSubmatch(src.Get("urls.0").String())
		if m == nil {
			inconsistent = true
			return false
		}
		names = append(names, name.String())
		hashes = append(hashes, m[1])
		return true
	})
	if inconsistent {
		return ErrMetadataInconsistency
	}

	contents := make([]*string, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			content, err := sources.ReadFile(gctx, name)
			if err != nil {
				c.logger.Warn("skipping source", zap.String("path", name), zap.Error(err))
				return nil
			}
			contents[i] = &content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	items := []item{{content: contract.Metadata, hash: contract.MetadataHash}}
	for i, content := range contents {
		if content != nil {
			items = append(items, item{content: *content, hash: hashes[i]})
		}
	}
	for _, it := range items {
		if err := c.VerifiedPut(ctx, it.content, it.hash); err != nil {
			return err
		}
	}
	return nil
}

package db

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"dev.hon.one/netcrawl/common"
)

// ArtifactDateFormat - Date prefix of artifact file names.
const ArtifactDateFormat = "2006-01-02"

// ArtifactPaths - Where the artifacts of a crawl were written.
type ArtifactPaths struct {
	Adjacency string
	Failed    string
}

// WriteArtifacts - Write the adjacency list and the failed list as "<date>_adj_list.<ext>" and "<date>_failed_list.<ext>".
func WriteArtifacts(dir string, format string, date time.Time, adjacency common.AdjacencyList, failed []string) (ArtifactPaths, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ArtifactPaths{}, err
	}

	sortedFailed := append([]string{}, failed...)
	sort.Strings(sortedFailed)
	if adjacency == nil {
		adjacency = common.AdjacencyList{}
	}

	prefix := date.Format(ArtifactDateFormat)
	paths := ArtifactPaths{
		Adjacency: filepath.Join(dir, fmt.Sprintf("%s_adj_list.%s", prefix, format)),
		Failed:    filepath.Join(dir, fmt.Sprintf("%s_failed_list.%s", prefix, format)),
	}
	if err := writeEncoded(paths.Adjacency, format, adjacency); err != nil {
		return ArtifactPaths{}, err
	}
	if err := writeEncoded(paths.Failed, format, sortedFailed); err != nil {
		return ArtifactPaths{}, err
	}

	log.WithFields(log.Fields{
		"adjacency_path": paths.Adjacency,
		"failed_path":    paths.Failed,
		"devices":        len(adjacency),
		"failed":         len(sortedFailed),
	}).Info("Wrote crawl artifacts")
	return paths, nil
}

func writeEncoded(path string, format string, value interface{}) error {
	var data []byte
	var err error
	switch format {
	case common.OutputFormatJSON:
		data, err = json.MarshalIndent(value, "", "  ")
	case common.OutputFormatYAML:
		data, err = yaml.Marshal(value)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return fmt.Errorf("encoding %v: %w", path, err)
	}
	return os.WriteFile(path, data, 0644)
}

// ReadAdjacency - Read an adjacency list artifact back.
func ReadAdjacency(path string) (common.AdjacencyList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	adjacency := common.AdjacencyList{}
	if filepath.Ext(path) == "."+common.OutputFormatYAML {
		err = yaml.Unmarshal(data, &adjacency)
	} else {
		err = json.Unmarshal(data, &adjacency)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %v: %w", path, err)
	}
	return adjacency, nil
}

package services

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/username/ownershipmap/src/logger"
	"github.com/username/ownershipmap/src/models"
	"github.com/username/ownershipmap/src/parsers/ownership"
	"github.com/username/ownershipmap/src/processors"
)

// TransformResult is the outcome of one pipeline run.
type TransformResult struct {
	Dataset              models.Dataset `json:"dataset"`
	DroppedRows          int            `json:"dropped_rows"`
	UnresolvedPortfolios int            `json:"unresolved_portfolios"`
}

// TransformService runs the full transformation pipeline: parse the raw
// export, classify rows by tree depth, aggregate holders, link portfolios
// to their holders and assemble the dataset. The whole run is a single
// in-memory pass; only a read failure of the source file is fatal.
type TransformService struct {
	parser          *ownership.Parser
	holderProcessor *processors.HolderProcessor
	linker          *processors.HierarchyLinker
	assembler       *processors.DatasetAssembler
}

func NewTransformService(ticker, companyName string, skipRows int, delim rune) *TransformService {
	return &TransformService{
		parser:          ownership.NewParser(skipRows, delim),
		holderProcessor: processors.NewHolderProcessor(ticker),
		linker:          processors.NewHierarchyLinker(ticker),
		assembler:       processors.NewDatasetAssembler(ticker, companyName),
	}
}

// Transform runs the pipeline over an export read from r. The filename is
// only used to pick the file format.
func (s *TransformService) Transform(r io.Reader, filename string) (*TransformResult, error) {
	rows, err := s.parser.Parse(r, filename)
	if err != nil {
		return nil, err
	}

	holderRows, portfolioRows, dropped := processors.Classify(rows)
	holders := s.holderProcessor.Aggregate(holderRows)
	portfolios, unresolved := s.linker.Link(portfolioRows, holders)
	dataset := s.assembler.Assemble(holders, portfolios)

	logger.L.Info("Transformation complete",
		"rows", len(rows),
		"dropped", dropped,
		"holders", dataset.Summary.TotalHolders,
		"portfolios", dataset.Summary.TotalPortfolios,
		"unresolvedPortfolios", unresolved,
		"totalShares", dataset.Summary.TotalShares,
		"totalPercentOut", dataset.Summary.TotalPercentOut,
	)

	return &TransformResult{
		Dataset:              dataset,
		DroppedRows:          dropped,
		UnresolvedPortfolios: unresolved,
	}, nil
}

// TransformFile runs the pipeline over an export on disk.
func (s *TransformService) TransformFile(path string) (*TransformResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file %s: %w", path, err)
	}
	defer file.Close()
	return s.Transform(file, path)
}

// WriteDataset serializes a dataset to disk as indented JSON. The output
// re-parses into the same holder and portfolio values.
func WriteDataset(dataset models.Dataset, path string) error {
	data, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize dataset: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write dataset to %s: %w", path, err)
	}
	logger.L.Info("Dataset written", "path", path)
	return nil
}

// LoadDataset reads a previously written dataset back from disk.
func LoadDataset(path string) (models.Dataset, error) {
	var dataset models.Dataset
	data, err := os.ReadFile(path)
	if err != nil {
		return dataset, fmt.Errorf("failed to read dataset from %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &dataset); err != nil {
		return dataset, fmt.Errorf("failed to parse dataset from %s: %w", path, err)
	}
	return dataset, nil
}

package parser

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// FileParser reads video URLs from a text file, one per line. Lines starting with # are comments.
type FileParser struct{}

// NewFileParser creates a new file parser
func NewFileParser() *FileParser {
	return &FileParser{}
}

// ParseFromURL reads URLs from the file at filePath.
func (p *FileParser) ParseFromURL(ctx context.Context, filePath string) ([]URL, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var urls []URL
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Lists pasted from spreadsheets often carry trailing commas
		line = strings.TrimRight(line, ", \t")
		if line == "" {
			continue
		}

		urls = append(urls, URL{Location: line})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file at line %d: %w", lineNum, err)
	}

	if len(urls) == 0 {
		return nil, fmt.Errorf("no URLs found in file")
	}

	return urls, nil
}

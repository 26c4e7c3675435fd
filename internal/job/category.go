package job

import (
	"path/filepath"
	"strings"
)

// Category describes how an input dataset was generated. The data generator
// writes each category into a directory of the same name.
type Category string

const (
	Ascending  Category = "ascending"
	Descending Category = "descending"
	Random     Category = "random"
	SingleNum  Category = "single_num"
	PipeOrgan  Category = "pipe_organ"
	Unknown    Category = "unknown"
)

// Categories lists the recognised categories in classification order.
var Categories = []Category{Ascending, Descending, Random, SingleNum, PipeOrgan}

// Classify returns the category of an input file from the directories on its
// path. The innermost directory naming a category wins. Paths under no
// recognised directory are Unknown. Callers pass paths relative to the data
// directory so its own ancestors are not considered.
func Classify(path string) Category {
	dirs := strings.Split(filepath.ToSlash(filepath.Dir(filepath.Clean(path))), "/")
	for i := len(dirs) - 1; i >= 0; i-- {
		for _, c := range Categories {
			if dirs[i] == string(c) {
				return c
			}
		}
	}
	return Unknown
}

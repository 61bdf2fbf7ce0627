// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	nmea "github.com/adrianmo/go-nmea"
)

// TypeLCEL is the proprietary sentence type the serial bridge emits:
//
//	$PLCEL,<cell1 raw>,<cell2 raw>,<ready 0|1>*CS
const TypeLCEL = "LCEL"

// CellSentence carries one averaged conversion of both amplifiers.
type CellSentence struct {
	nmea.BaseSentence
	Cell1 int64
	Cell2 int64
	Ready bool
}

// Combined returns the sum of both channels.
func (s CellSentence) Combined() int64 {
	return s.Cell1 + s.Cell2
}

func newCellSentence(s nmea.BaseSentence) (nmea.Sentence, error) {
	p := nmea.NewParser(s)
	p.AssertType(TypeLCEL)
	if len(s.Fields) != 3 {
		return nil, fmt.Errorf("nmea: %s expects 3 fields, got %d", s.Prefix(), len(s.Fields))
	}
	out := CellSentence{
		BaseSentence: s,
		Cell1:        p.Int64(0, "cell 1"),
		Cell2:        p.Int64(1, "cell 2"),
		Ready:        p.Int64(2, "ready") == 1,
	}
	return out, p.Err()
}

var cellSentenceParser = nmea.SentenceParser{
	CustomParsers: map[string]nmea.ParserFunc{
		TypeLCEL: newCellSentence,
	},
}

// ParseCellSentence parses a single $PLCEL line, checksum included.
func ParseCellSentence(line string) (CellSentence, error) {
	sentence, err := cellSentenceParser.Parse(line)
	if err != nil {
		return CellSentence{}, err
	}
	cs, ok := sentence.(CellSentence)
	if !ok {
		return CellSentence{}, fmt.Errorf("nmea: unexpected sentence %s", sentence.DataType())
	}
	return cs, nil
}

package protocol

import (
	"encoding/binary"
	"math"
)

// kelvinOffset converts Kelvin to degrees Celsius
const kelvinOffset = 273.15

// wordAt returns the big-endian word at word index i (bytes 2i and 2i+1)
func wordAt(data []byte, i int) uint16 {
	return binary.BigEndian.Uint16(data[2*i : 2*i+2])
}

// lowByteAt returns the low byte of word index i
func lowByteAt(data []byte, i int) byte {
	return data[2*i+1]
}

// CentikelvinToCelsius converts a raw temperature word (1/100 K) to °C rounded to one decimal
func CentikelvinToCelsius(raw uint16) float64 {
	return roundTenth(float64(raw)/100 - kelvinOffset)
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

package pe

import (
	"strings"
)

func Max(x, y uint32) uint32 {
	if x < y {
		return y
	}
	return x
}

func IsValidDosFilename(filename string) bool {
	alphabet := "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	numerals := "0123456789"
	special := "!#$%&'()-@^_`{}~+,.;=[]\\/"
	charset := alphabet + numerals + special
	for _, c := range filename {
		if !strings.Contains(charset, string(c)) {
			return false
		}
	}
	return true
}

func align4(offset int64) int64 {
	return (offset + 3) &^ 3
}

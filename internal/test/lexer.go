package test

import (
	"math/rand"
	"strings"
)

// validTokens is a pool of MiniC lexemes separated by ';'. Joining any
// selection of them with whitespace gives input that lexes without errors.
const validTokens = "int;float;char;bool;void;if;else;while;for;return;break;print;new;size;true;false;" +
	"main;counter;x_1;_tmp;(;);[;];{;};,;.;" +
	"+;-;*;/;%;=;+=;-=;*=;/=;%=;==;!=;<;<=;>;>=;&&;||;!;++;--;" +
	"0;1;123;321;9223372036854775807;3.14;1e10;2.5E-3;'a';'\\n';'\\0';" +
	"\"\";\"this is a string\";\"escaped \\\"quote\\\" and \\t tab\";" +
	"\"this is a longer string containing a bunch of text: Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor incididunt ut labore et dolore magna aliqua.\";" +
	"//comment\n;/* block\ncomment */;\n"

func GetRandomTokens(size int) string {
	return GetRandomTokensWithSep(size, " ")
}

func GetRandomTokensWithSep(size int, sep string) string {
	valid := strings.Split(validTokens, ";")

	var toks []string
	for len(toks) < size {
		toks = append(toks, valid[rand.Intn(len(valid))])
	}

	return strings.Join(toks, sep)
}

package match

import "strings"

// kanaTable maps katakana (and the small forms that modify them) to Hepburn
// romaji. Digraphs like キャ must be matched before their single-kana prefix,
// so lookup tries two runes first.
var kanaTable = map[string]string{
	"ア": "a", "イ": "i", "ウ": "u", "エ": "e", "オ": "o",
	"カ": "ka", "キ": "ki", "ク": "ku", "ケ": "ke", "コ": "ko",
	"ガ": "ga", "ギ": "gi", "グ": "gu", "ゲ": "ge", "ゴ": "go",
	"サ": "sa", "シ": "shi", "ス": "su", "セ": "se", "ソ": "so",
	"ザ": "za", "ジ": "ji", "ズ": "zu", "ゼ": "ze", "ゾ": "zo",
	"タ": "ta", "チ": "chi", "ツ": "tsu", "テ": "te", "ト": "to",
	"ダ": "da", "ヂ": "ji", "ヅ": "zu", "デ": "de", "ド": "do",
	"ナ": "na", "ニ": "ni", "ヌ": "nu", "ネ": "ne", "ノ": "no",
	"ハ": "ha", "ヒ": "hi", "フ": "fu", "ヘ": "he", "ホ": "ho",
	"バ": "ba", "ビ": "bi", "ブ": "bu", "ベ": "be", "ボ": "bo",
	"パ": "pa", "ピ": "pi", "プ": "pu", "ペ": "pe", "ポ": "po",
	"マ": "ma", "ミ": "mi", "ム": "mu", "メ": "me", "モ": "mo",
	"ヤ": "ya", "ユ": "yu", "ヨ": "yo",
	"ラ": "ra", "リ": "ri", "ル": "ru", "レ": "re", "ロ": "ro",
	"ワ": "wa", "ヲ": "wo", "ン": "n",
	"ヴ": "vu",

	"キャ": "kya", "キュ": "kyu", "キョ": "kyo",
	"ギャ": "gya", "ギュ": "gyu", "ギョ": "gyo",
	"シャ": "sha", "シュ": "shu", "ショ": "sho", "シェ": "she",
	"ジャ": "ja", "ジュ": "ju", "ジョ": "jo", "ジェ": "je",
	"チャ": "cha", "チュ": "chu", "チョ": "cho", "チェ": "che",
	"ニャ": "nya", "ニュ": "nyu", "ニョ": "nyo",
	"ヒャ": "hya", "ヒュ": "hyu", "ヒョ": "hyo",
	"ビャ": "bya", "ビュ": "byu", "ビョ": "byo",
	"ピャ": "pya", "ピュ": "pyu", "ピョ": "pyo",
	"ミャ": "mya", "ミュ": "myu", "ミョ": "myo",
	"リャ": "rya", "リュ": "ryu", "リョ": "ryo",
	"ファ": "fa", "フィ": "fi", "フェ": "fe", "フォ": "fo",
	"ウィ": "wi", "ウェ": "we", "ウォ": "wo",
	"ティ": "ti", "ディ": "di", "トゥ": "tu", "ドゥ": "du",
	"ヴァ": "va", "ヴィ": "vi", "ヴェ": "ve", "ヴォ": "vo",
}

// Romanize converts katakana runs in s to Hepburn romaji, leaving other
// characters untouched. The sokuon ッ doubles the following consonant and the
// long-vowel mark ー repeats the previous vowel.
func Romanize(s string) string {
	runes := []rune(s)
	var b strings.Builder
	geminate := false

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == 'ッ' {
			geminate = true
			continue
		}
		if r == 'ー' {
			// Long vowel: repeat the last vowel already emitted.
			out := b.String()
			if len(out) > 0 {
				last := out[len(out)-1]
				if strings.ContainsRune("aeiou", rune(last)) {
					b.WriteByte(last)
				}
			}
			continue
		}

		// Try a two-rune digraph first.
		var syl string
		var ok bool
		if i+1 < len(runes) {
			syl, ok = kanaTable[string(runes[i:i+2])]
			if ok {
				i++
			}
		}
		if !ok {
			syl, ok = kanaTable[string(r)]
		}
		if !ok {
			geminate = false
			b.WriteRune(r)
			continue
		}

		if geminate && len(syl) > 0 {
			b.WriteByte(syl[0])
			geminate = false
		}
		b.WriteString(syl)
	}
	return b.String()
}

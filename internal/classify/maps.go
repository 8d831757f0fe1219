package classify

// DefaultCountries is a starter table covering the jurisdictions that
// appear most often in public proxy subscriptions. cmd/subsync passes it
// to NewMaps as-is; no configuration setting extends it.
var DefaultCountries = []CountryEntry{
	{Code: "US", Name: "United States", Flag: "🇺🇸", Aliases: []string{"United States", "USA", "US", "🇺🇸"}},
	{Code: "HK", Name: "Hong Kong", Flag: "🇭🇰", Aliases: []string{"Hong Kong", "HK", "🇭🇰"}},
	{Code: "TW", Name: "Taiwan", Flag: "🇹🇼", Aliases: []string{"Taiwan", "TW", "🇹🇼"}},
	{Code: "JP", Name: "Japan", Flag: "🇯🇵", Aliases: []string{"Japan", "JP", "🇯🇵"}},
	{Code: "SG", Name: "Singapore", Flag: "🇸🇬", Aliases: []string{"Singapore", "SG", "🇸🇬"}},
	{Code: "KR", Name: "Korea", Flag: "🇰🇷", Aliases: []string{"Korea", "KR", "🇰🇷"}},
	{Code: "GB", Name: "United Kingdom", Flag: "🇬🇧", Aliases: []string{"United Kingdom", "UK", "GB", "🇬🇧"}},
	{Code: "DE", Name: "Germany", Flag: "🇩🇪", Aliases: []string{"Germany", "DE", "🇩🇪"}},
	{Code: "FR", Name: "France", Flag: "🇫🇷", Aliases: []string{"France", "FR", "🇫🇷"}},
	{Code: "CA", Name: "Canada", Flag: "🇨🇦", Aliases: []string{"Canada", "CA", "🇨🇦"}},
	{Code: "AU", Name: "Australia", Flag: "🇦🇺", Aliases: []string{"Australia", "AU", "🇦🇺"}},
	{Code: "IN", Name: "India", Flag: "🇮🇳", Aliases: []string{"India", "IN", "🇮🇳"}},
	{Code: "RU", Name: "Russia", Flag: "🇷🇺", Aliases: []string{"Russia", "RU", "🇷🇺"}},
	{Code: "CN", Name: "China", Flag: "🇨🇳", Aliases: []string{"China", "CN", "🇨🇳"}},
	{Code: "NL", Name: "Netherlands", Flag: "🇳🇱", Aliases: []string{"Netherlands", "NL", "🇳🇱"}},
	{Code: "TR", Name: "Turkey", Flag: "🇹🇷", Aliases: []string{"Turkey", "TR", "🇹🇷"}},
	{Code: "AR", Name: "Argentina", Flag: "🇦🇷", Aliases: []string{"Argentina", "AR", "🇦🇷"}},
	{Code: "BR", Name: "Brazil", Flag: "🇧🇷", Aliases: []string{"Brazil", "BR", "🇧🇷"}},
}

// DefaultServiceTags recognizes streaming-unlock markers commonly found
// in proxy remarks.
var DefaultServiceTags = []ServiceTagEntry{
	{Tag: "Netflix", Aliases: []string{"Netflix", "NF", "奈飞"}},
	{Tag: "Disney+", Aliases: []string{"Disney", "DISNEY+", "D+"}},
	{Tag: "ChatGPT", Aliases: []string{"ChatGPT", "OpenAI", "GPT"}},
	{Tag: "YouTube", Aliases: []string{"YouTube", "YT"}},
	{Tag: "TikTok", Aliases: []string{"TikTok"}},
}

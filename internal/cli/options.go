package cli

type Options struct {
	JSON  bool
	Yes   bool
	Debug bool
}

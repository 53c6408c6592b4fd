package channel

// Map transforms items with fn. Items for which fn reports false are dropped.
func Map[T, U any](in chan T, fn func(T) (U, bool)) chan U {
	out := make(chan U)
	go func() {
		defer close(out)
		for item := range in {
			if mapped, ok := fn(item); ok {
				out <- mapped
			}
		}
	}()
	return out
}

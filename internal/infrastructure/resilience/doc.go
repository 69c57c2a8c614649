/*
Package resilience provides a circuit breaker for operations that can fail
repeatedly, such as bringing up isolated execution contexts.

# States

- Closed: calls pass through; consecutive failures are counted
- Open: calls fail fast with ErrCircuitOpen until the cooldown passes
- Half-Open: a limited number of probe calls decide whether to close again

	Closed --[failures]-> Open --[cooldown]-> Half-Open --[probes succeed]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open

# Usage

	breaker := resilience.New("isolate", resilience.Settings{
		Failures: 5,
		Cooldown: 30 * time.Second,
	})

	err := breaker.Do(func() error {
		return startContext()
	})
*/
package resilience

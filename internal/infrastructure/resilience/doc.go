/*
Package resilience provides a circuit breaker for host operations that fail
repeatedly for the same reason.

The shell guards window process launches with it: once the configured number
of consecutive launches failed, further detach requests are refused
immediately and the requesting window restores the tab, instead of every drag
waiting for a launch that cannot succeed.

# Usage

	breaker := resilience.New("window-launch", resilience.Settings{
		Threshold: 3,
		Cooldown:  30 * time.Second,
	})

	err := breaker.Do(ctx, func(ctx context.Context) error {
		return launcher.Launch(ctx, spec)
	})

# States

	Closed --[Threshold failures]-> Open --[Cooldown]-> Half-Open --[success]-> Closed
	                                                       |
	                                                   [failure]
	                                                       v
	                                                     Open

Half-open lets a single trial call through at a time.
*/
package resilience

// Package harness runs merge scenarios: sets of VCD inputs, a reset path,
// and assertions about the merged result.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	reset: tb.rst_n
//	module: top            # optional output scope name
//	inputs:
//	  - name: a.vcd
//	    vcd: |
//	      $timescale 1ns $end
//	      ...
//	  - path: traces/b.vcd # relative to the scenario file
//	assertions:
//	  - type: reset_end
//	    input: a.vcd
//	    tick: 50
//	  - type: event_at
//	    tick: 20
//	    signal: b.y
//	    value: 1
//
// # Assertion Types
//
//   - reset_end: the reset of one input ends at tick
//   - skew: merge step N shifted its donor by skew ticks
//   - signal_names: the merged signal names, in id order
//   - signal_count: the number of merged signals
//   - event_at: the merged log holds signal=value at tick
//   - initial_frame: tick 0 holds exactly one low value per signal
//   - renamed: some merge step renamed from to to
//   - merge_error: loading or merging failed with a message containing text
//
// # Determinism
//
// Every scenario runs against an in-memory archive: the merged trace is
// stored and read back, and the round trip must reproduce the trace digest.
// The merged VCD text is deterministic and is what golden files hold.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/two_way.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness

// scriptnest classifies Bitcoin output scripts, resolves nested script
// commitments through a pre-image store, and introspects the public keys of
// lock scripts.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/scriptnest/scriptnest/policy"
	"github.com/scriptnest/scriptnest/scriptdb"
	"github.com/scriptnest/scriptnest/scripts"
)

const semverString = "0.1.0"

func main() {
	if err := scriptnestMain(); err != nil {
		os.Exit(1)
	}
}

// scriptnestMain runs the operation selected on the command line. The
// configuration load prints its own errors, everything after it logs through
// the main subsystem logger.
func scriptnestMain() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.ShowVersion {
		fmt.Println("scriptnest version", semverString)
		return nil
	}

	var store *scriptdb.Store
	if cfg.DB != "" {
		store, err = scriptdb.Open(cfg.DB, cfg.DBTimeout)
		if err != nil {
			log.Errorf("Failed to open pre-image store: %v", err)
			return err
		}
		defer store.Close()
	}

	switch {
	case cfg.Classify != "":
		err = classifyScript(cfg.Classify)

	case cfg.Extract != "":
		err = extractPubkeys(cfg.Extract)

	case cfg.Policy != "":
		err = printPolicy(cfg.Policy)

	case cfg.Store != "":
		err = storePreimage(store, cfg.Store)

	case cfg.Resolve != "":
		err = resolveScript(store, cfg.Resolve)

	default:
		err = fmt.Errorf("no operation requested, see --help")
		fmt.Fprintln(os.Stderr, err)
	}
	return err
}

// decodeScript decodes a hex-encoded script given on the command line.
func decodeScript(scriptHex string) ([]byte, error) {
	script, err := hex.DecodeString(scriptHex)
	if err != nil {
		log.Errorf("Invalid script hex: %v", err)
		return nil, err
	}
	return script, nil
}

// classifyScript prints the script class of an output script.
func classifyScript(scriptHex string) error {
	script, err := decodeScript(scriptHex)
	if err != nil {
		return err
	}

	scriptType := scripts.ParsePubkeyScript(scripts.NewPubkeyScript(script))
	fmt.Println(scriptType)
	return nil
}

// extractPubkeys prints every public key of a lock script, one compressed
// serialization per line, in script order.
func extractPubkeys(scriptHex string) error {
	script, err := decodeScript(scriptHex)
	if err != nil {
		return err
	}

	pubKeys, err := scripts.NewLockScript(script).ExtractPubkeys()
	if err != nil {
		log.Errorf("Failed to extract public keys: %v", err)
		return err
	}

	for _, pubKey := range pubKeys {
		fmt.Printf("%x\n", pubKey.SerializeCompressed())
	}
	return nil
}

// printPolicy prints the policy expression of a lock script in miniscript
// notation.
func printPolicy(scriptHex string) error {
	script, err := decodeScript(scriptHex)
	if err != nil {
		return err
	}

	tree, err := policy.Parse(script)
	if err != nil {
		log.Errorf("Failed to parse policy: %v", err)
		return err
	}

	fmt.Println(tree)
	return nil
}

// storePreimage adds a script pre-image to the store and prints both
// commitment hashes it is now filed under.
func storePreimage(store *scriptdb.Store, scriptHex string) error {
	script, err := decodeScript(scriptHex)
	if err != nil {
		return err
	}

	if err := store.Put(script); err != nil {
		log.Errorf("Failed to store pre-image: %v", err)
		return err
	}

	fmt.Printf("stored pre-image of %d bytes\n", len(script))
	return nil
}

// resolveScript descends from an output script to its terminal lock script,
// pulling pre-images from the store, and prints the result.
func resolveScript(store *scriptdb.Store, scriptHex string) error {
	script, err := decodeScript(scriptHex)
	if err != nil {
		return err
	}

	lock, err := scripts.ResolveLockScript(
		scripts.NewPubkeyScript(script), store,
	)
	if err != nil {
		log.Errorf("Failed to resolve lock script: %v", err)
		return err
	}

	fmt.Println(lock)
	return nil
}

package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cosmos/cosmos-sdk/client/input"
	"github.com/spf13/cobra"

	"github.com/oblivion-chain/oblivion/client"
)

const (
	flagMnemonicLength = "mnemonic-length"
	flagNoBackup       = "no-backup"
	flagRecover        = "recover"
	flagAccount        = "account"
	flagIndex          = "index"
	flagAddressOnly    = "address"
	flagYes            = "yes"
)

// KeysCmd manages the encrypted keyring under <home>/keyring.
func KeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage keys derived from BIP39 mnemonics",
		Long: `Keys are derived from a BIP39 mnemonic along m/44'/118'/account'/0/index and
stored encrypted with a passphrase. Set OBLIV_KEYRING_PASSPHRASE to skip the prompt.`,
	}
	cmd.AddCommand(
		AddKeyCommand(),
		ShowKeyCommand(),
		ListKeysCommand(),
		DeleteKeyCommand(),
	)
	return cmd
}

// AddKeyCommand creates a key from a fresh or recovered mnemonic.
func AddKeyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Add a new key, or recover one with --recover",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := getCommandContext(cmd)
			if err != nil {
				return err
			}
			ks, err := cc.keystore()
			if err != nil {
				return err
			}

			recoverKey, _ := cmd.Flags().GetBool(flagRecover)
			account, _ := cmd.Flags().GetUint32(flagAccount)
			index, _ := cmd.Flags().GetUint32(flagIndex)

			var mnemonic string
			if recoverKey {
				mnemonic, err = input.GetString("Enter your bip39 mnemonic", cc.reader(cmd))
				if err != nil {
					return err
				}
				mnemonic = strings.Join(strings.Fields(mnemonic), " ")
			} else {
				words, _ := cmd.Flags().GetInt(flagMnemonicLength)
				mnemonic, err = client.NewMnemonic(words)
				if err != nil {
					return err
				}
			}

			priv, err := client.DeriveKey(mnemonic, account, index)
			if err != nil {
				return err
			}
			pass, err := cc.passphrase(cmd, true)
			if err != nil {
				return err
			}
			info, err := ks.Save(args[0], priv, pass)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "name: %s\naddress: %s\n", info.Name, info.Address)
			noBackup, _ := cmd.Flags().GetBool(flagNoBackup)
			if !recoverKey && !noBackup {
				fmt.Fprintf(out, "\n**Important** write this mnemonic phrase in a safe place.\n"+
					"It is the only way to recover your account if you ever forget your passphrase.\n\n%s\n", mnemonic)
			}
			return nil
		},
	}
	cmd.Flags().Int(flagMnemonicLength, 24, "mnemonic length in words (12 or 24)")
	cmd.Flags().Bool(flagNoBackup, false, "do not print the generated mnemonic")
	cmd.Flags().Bool(flagRecover, false, "read a mnemonic from stdin instead of generating one")
	cmd.Flags().Uint32(flagAccount, 0, "HD account number")
	cmd.Flags().Uint32(flagIndex, 0, "HD address index")
	return cmd
}

// ShowKeyCommand prints the public info of a key.
func ShowKeyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [name]",
		Short: "Show key info",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := getCommandContext(cmd)
			if err != nil {
				return err
			}
			ks, err := cc.keystore()
			if err != nil {
				return err
			}
			info, err := ks.Show(args[0])
			if err != nil {
				return err
			}
			if addressOnly, _ := cmd.Flags().GetBool(flagAddressOnly); addressOnly {
				fmt.Fprintln(cmd.OutOrStdout(), info.Address)
				return nil
			}
			return printJSON(cmd, info)
		},
	}
	cmd.Flags().Bool(flagAddressOnly, false, "print only the address")
	return cmd
}

// ListKeysCommand lists every stored key.
func ListKeysCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := getCommandContext(cmd)
			if err != nil {
				return err
			}
			ks, err := cc.keystore()
			if err != nil {
				return err
			}
			infos, err := ks.List()
			if err != nil {
				return err
			}
			return printJSON(cmd, infos)
		},
	}
}

// DeleteKeyCommand removes a key after confirmation.
func DeleteKeyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete [name]",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := getCommandContext(cmd)
			if err != nil {
				return err
			}
			ks, err := cc.keystore()
			if err != nil {
				return err
			}
			if _, err := ks.Show(args[0]); err != nil {
				return err
			}
			if yes, _ := cmd.Flags().GetBool(flagYes); !yes {
				ok, err := input.GetConfirmation("Key reference will be deleted. Continue?",
					cc.reader(cmd), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.ErrOrStderr(), "aborted")
					return nil
				}
			}
			if err := ks.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "key deleted")
			return nil
		},
	}
	cmd.Flags().BoolP(flagYes, "y", false, "skip confirmation")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	bz, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(bz))
	return nil
}

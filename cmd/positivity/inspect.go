package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/daimatz/positivity/pkg/classfile"
	"github.com/daimatz/positivity/pkg/vm"
)

func newInspectCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect CLASSFILE",
		Short: "Decode a class file and print its structure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cf, err := classfile.ParseFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printClass(out, cf, v.GetBool("code"))

			if err := vm.Verify(cf); err != nil {
				fmt.Fprintln(out, color.RedString("verification failed:"))
				fmt.Fprintln(out, err)
				return fmt.Errorf("%s does not verify", args[0])
			}
			fmt.Fprintln(out, color.GreenString("verified"))
			return nil
		},
	}
	cmd.Flags().Bool("code", true, "disassemble method bodies")
	return cmd
}

func printClass(w io.Writer, cf *classfile.ClassFile, code bool) {
	heading := color.New(color.Bold).SprintFunc()

	name, err := cf.ClassName()
	if err != nil {
		name = fmt.Sprintf("<%v>", err)
	}
	fmt.Fprintf(w, "%s %s\n", heading("class"), name)
	fmt.Fprintf(w, "  version: %d.%d\n", cf.MajorVersion, cf.MinorVersion)
	fmt.Fprintf(w, "  flags: 0x%04X %s\n", cf.AccessFlags, classFlags(cf.AccessFlags))
	fmt.Fprintf(w, "  super: %s\n", cf.SuperClassName())

	fmt.Fprintf(w, "%s (%d entries)\n", heading("constant pool"), len(cf.ConstantPool)-1)
	for i, e := range cf.ConstantPool {
		if e == nil {
			continue
		}
		fmt.Fprintf(w, "  #%-3d = %-18s %s\n", i, classfile.TagName(e.Tag()), describeEntry(e))
	}

	for i := range cf.Methods {
		m := &cf.Methods[i]
		fmt.Fprintf(w, "%s %s%s flags=0x%04X\n", heading("method"), m.Name, m.Descriptor, m.AccessFlags)
		if m.Code == nil {
			continue
		}
		fmt.Fprintf(w, "  max_stack=%d max_locals=%d code_length=%d\n", m.Code.MaxStack, m.Code.MaxLocals, len(m.Code.Code))
		if code {
			printCode(w, cf, m.Code.Code)
		}
		if len(m.Code.StackMap) > 0 {
			offsets := make([]string, len(m.Code.StackMap))
			for j, f := range m.Code.StackMap {
				offsets[j] = fmt.Sprintf("%d(type %d)", f.Offset, f.Type)
			}
			fmt.Fprintf(w, "  StackMapTable: %s\n", strings.Join(offsets, " "))
		}
	}
}

func printCode(w io.Writer, cf *classfile.ClassFile, code []byte) {
	instrs, err := classfile.Disassemble(code)
	if err != nil {
		fmt.Fprintf(w, "  <%v>\n", err)
		return
	}
	for _, ins := range instrs {
		line := "  " + ins.String()
		if ins.Opcode == classfile.OpInvokevirtual || ins.Opcode == classfile.OpInvokestatic {
			if ref, err := classfile.ResolveMethodref(cf.ConstantPool, uint16(ins.Operand)); err == nil {
				line += "  // " + ref.String()
			}
		}
		fmt.Fprintln(w, line)
	}
}

func describeEntry(e classfile.ConstantPoolEntry) string {
	switch c := e.(type) {
	case *classfile.ConstantUtf8:
		return c.Value
	case *classfile.ConstantInteger:
		return fmt.Sprint(c.Value)
	case *classfile.ConstantClass:
		return fmt.Sprintf("#%d", c.NameIndex)
	case *classfile.ConstantString:
		return fmt.Sprintf("#%d", c.StringIndex)
	case *classfile.ConstantNameAndType:
		return fmt.Sprintf("#%d:#%d", c.NameIndex, c.DescriptorIndex)
	case *classfile.ConstantMethodref:
		return fmt.Sprintf("#%d.#%d", c.ClassIndex, c.NameAndTypeIndex)
	}
	return ""
}

func classFlags(flags uint16) string {
	var names []string
	for _, f := range []struct {
		bit  uint16
		name string
	}{
		{classfile.AccPublic, "public"},
		{classfile.AccSuper, "super"},
		{classfile.AccAbstract, "abstract"},
	} {
		if flags&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, " ")
}
